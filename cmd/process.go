package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sirosfoundation/go-xop/pkg/xop"
)

// processOptions are the inputs of the process command
type processOptions struct {
	ConfigPath  string
	Action      string
	ContentType string
	Input       string
	Output      string
	Properties  map[string]string
	Headers     map[string]string
	Debug       bool
}

func newProcessCmd() *cobra.Command {
	opts := processOptions{}

	cmd := &cobra.Command{
		Use:   "process",
		Short: "Run one XOP action over a message file",
		Long: `Run one XOP action over a multipart message read from a file (or stdin).

EDIT_1 and TRANSFORM_TO_EMBEDDED write the rewritten message; EXTRACT_SOAP
and GET_BASE64STR write the xop_ outputs as JSON.

Examples:
  xopd process --action extract_soap --content-type "$CT" --in message.mime
  xopd process --action edit_1 --content-type "$CT" --in message.mime --out clean.mime
  xopd process --action get_base64str --header documentId=42 \
      --header attachmentURL=https://store.example.com/documents/`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProcess(cmd.Context(), opts, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVar(&opts.ConfigPath, "config", "", "Path to the YAML configuration file")
	cmd.Flags().StringVar(&opts.Action, "action", "", "Action to run (default from config, else EDIT_1)")
	cmd.Flags().StringVar(&opts.ContentType, "content-type", "", "Content-Type header of the message")
	cmd.Flags().StringVar(&opts.Input, "in", "-", "Message file, - for stdin")
	cmd.Flags().StringVar(&opts.Output, "out", "-", "Output file, - for stdout")
	cmd.Flags().StringToStringVar(&opts.Properties, "property", nil, "Handler property override (name=value)")
	cmd.Flags().StringToStringVar(&opts.Headers, "header", nil, "Message header (name=value)")
	cmd.Flags().BoolVar(&opts.Debug, "debug", false, "Enable debug logging and stack traces")

	return cmd
}

func runProcess(ctx context.Context, opts processOptions, stdin io.Reader, stdout, stderr io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig(opts.ConfigPath)
	if err != nil {
		return err
	}
	level := cfg.Logging.Level
	if opts.Debug {
		level = "debug"
	}
	logger := newLogger(stderr, level, cfg.Logging.Format)

	content, err := readInput(opts.Input, stdin)
	if err != nil {
		return err
	}

	handler, err := newHandler(cfg, logger, nil)
	if err != nil {
		return err
	}

	overrides := make(map[string]string, len(opts.Properties)+2)
	for k, v := range opts.Properties {
		overrides[k] = v
	}
	if opts.Action != "" {
		overrides[xop.PropertyAction] = opts.Action
	}
	if opts.Debug {
		overrides[xop.PropertyDebug] = "true"
	}
	handler = handler.WithProperties(overrides)

	msg := xop.NewMemoryMessage(opts.ContentType, content)
	for k, v := range opts.Headers {
		msg.SetHeader(k, v)
	}
	flow := xop.NewMemoryFlow()
	flow.SetMessage(sourceName(cfg.Handler.Source, overrides), msg)

	if err := handler.Run(ctx, flow); err != nil {
		if stack, ok := flow.Variable(xop.VarPrefix + xop.OutputStacktrace); ok {
			fmt.Fprintln(stderr, stack)
		}
		return err
	}

	out := flow.Variables()
	action := xop.ParseAction(out[xop.VarPrefix+xop.OutputAction])

	return writeOutput(opts.Output, stdout, func(w io.Writer) error {
		if action.RewritesContent() {
			_, err := w.Write(msg.Bytes())
			return err
		}
		return writeVariables(w, out)
	})
}

// sourceName is the flow message name the handler reads, with a source
// property override taking precedence over the configured one
func sourceName(configured string, overrides map[string]string) string {
	if v := strings.TrimSpace(overrides[xop.PropertySource]); v != "" {
		return v
	}
	if v := strings.TrimSpace(configured); v != "" {
		return v
	}
	return xop.DefaultSource
}

func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path == "" || path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("reading stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading message file: %w", err)
	}
	return data, nil
}

func writeOutput(path string, stdout io.Writer, write func(io.Writer) error) error {
	if path == "" || path == "-" {
		return write(stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// writeVariables prints variables as indented JSON. encoding/json sorts
// map keys.
func writeVariables(w io.Writer, vars map[string]string) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(vars)
}
