package xop

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirosfoundation/go-xop/pkg/mime"
	"github.com/sirosfoundation/go-xop/pkg/transport"
	"github.com/sirosfoundation/go-xop/pkg/xmldom"
)

// Property names understood by the Handler
const (
	PropertySource      = "source"
	PropertyAction      = "action"
	PropertyPart1CTypes = "part1-ctypes"
	PropertyPart2CTypes = "part2-ctypes"
	PropertyDebug       = "debug"
)

// DefaultSource is the message used when no source is configured
const DefaultSource = "message"

// VarPrefix is prepended to every output variable
const VarPrefix = "xop_"

// Output variable names, without VarPrefix
const (
	OutputAction        = "action"
	OutputTransformed   = "transformed"
	OutputExtractedXML  = "extracted_xml"
	OutputBase64Encoded = "base64Encoded"
	OutputURL           = "url"
	OutputError         = "error"
	OutputStacktrace    = "stacktrace"
)

// Message headers read by GET_BASE64STR
const (
	HeaderAPIKey        = "apiKey"
	HeaderDocumentID    = "documentId"
	HeaderAttachmentURL = "attachmentURL"
)

// Result is the outcome reported to the host
type Result int

const (
	ResultSuccess Result = iota
	ResultAbort
)

func (r Result) String() string {
	if r == ResultSuccess {
		return "success"
	}
	return "abort"
}

// Observer receives one observation per Execute call. err is nil on
// success.
type Observer interface {
	ObserveExecution(action Action, err error, elapsed time.Duration)
}

// Config configures a Handler
type Config struct {
	// Properties are the raw handler properties. Values may contain {name}
	// references that the Flow resolves on each call.
	Properties map[string]string
	// Parser defaults to xmldom.NewParser()
	Parser xmldom.Parser
	// Fetcher is required only for GET_BASE64STR
	Fetcher  transport.Fetcher
	Observer Observer
	Logger   *slog.Logger
}

// Handler runs one of the XOP actions against a Flow. It holds read-only
// configuration and is safe for concurrent use.
type Handler struct {
	properties map[string]string
	parser     xmldom.Parser
	fetcher    transport.Fetcher
	observer   Observer
	logger     *slog.Logger
}

// NewHandler creates a Handler
func NewHandler(cfg *Config) *Handler {
	if cfg == nil {
		cfg = &Config{}
	}
	h := &Handler{
		properties: make(map[string]string, len(cfg.Properties)),
		parser:     cfg.Parser,
		fetcher:    cfg.Fetcher,
		observer:   cfg.Observer,
		logger:     cfg.Logger,
	}
	for k, v := range cfg.Properties {
		h.properties[k] = v
	}
	if h.parser == nil {
		h.parser = xmldom.NewParser()
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	return h
}

// WithProperties returns a copy of h with its properties overlaid by
// overrides
func (h *Handler) WithProperties(overrides map[string]string) *Handler {
	c := *h
	c.properties = make(map[string]string, len(h.properties)+len(overrides))
	for k, v := range h.properties {
		c.properties[k] = v
	}
	for k, v := range overrides {
		c.properties[k] = v
	}
	return &c
}

// changes holds what a pipeline wants to publish until it has succeeded
type changes struct {
	vars        [][2]string
	content     []byte
	setContent  bool
	contentType string
}

func (c *changes) set(name, value string) {
	c.vars = append(c.vars, [2]string{name, value})
}

func (c *changes) replaceContent(data []byte, contentType string) {
	c.content = data
	c.setContent = true
	c.contentType = contentType
}

func (c *changes) commit(flow Flow, msg Message) {
	for _, kv := range c.vars {
		flow.SetVariable(VarPrefix+kv[0], kv[1])
	}
	if c.setContent {
		msg.SetContent(c.content)
		if c.contentType != "" {
			msg.SetHeader("Content-Type", c.contentType)
		}
	}
}

// Execute runs the configured action and reports the outcome to the host
func (h *Handler) Execute(ctx context.Context, flow Flow) Result {
	if err := h.Run(ctx, flow); err != nil {
		return ResultAbort
	}
	return ResultSuccess
}

// Run runs the configured action. Outputs and message changes are applied
// only if the action succeeds. A failed action records only the error, plus
// the stack trace of internal failures in debug mode, and returns it.
func (h *Handler) Run(ctx context.Context, flow Flow) (err error) {
	start := time.Now()
	action := ActionUnspecified

	defer func() {
		if r := recover(); r != nil {
			err = internal(fmt.Errorf("panic: %v", r))
			h.fail(flow, action, err)
		}
		if h.observer != nil {
			h.observer.ObserveExecution(action, err, time.Since(start))
		}
	}()

	action = h.resolveAction(flow)
	h.logger.Debug("resolved xop action", "action", action.String())

	msg, c, err := h.run(ctx, flow, action)
	if err != nil {
		h.fail(flow, action, err)
		return err
	}

	c.set(OutputAction, action.OutputName())
	c.commit(flow, msg)
	h.logger.Debug("xop action completed",
		"action", action.String(),
		"duration", time.Since(start))
	return nil
}

func (h *Handler) run(ctx context.Context, flow Flow, action Action) (Message, *changes, error) {
	if action == ActionUnspecified {
		return nil, nil, inputErrorf("specify a valid action.")
	}

	source := h.resolved(flow, PropertySource)
	if source == "" {
		source = DefaultSource
	}
	msg := flow.Message(source)
	if msg == nil {
		return nil, nil, inputErrorf("source message is missing.")
	}

	c := &changes{}
	if !action.multipart() {
		return msg, c, h.getBase64Str(ctx, msg, c)
	}

	content, err := msg.Content()
	if err != nil {
		return nil, nil, internal(fmt.Errorf("failed to open message content: %w", err))
	}
	defer content.Close()

	contentType := msg.Header("Content-Type")
	r, err := mime.NewReader(content, contentType)
	if errors.Is(err, mime.ErrMissingBoundary) {
		return nil, nil, inputErrorf("no boundary found")
	}
	if err != nil {
		return nil, nil, internal(err)
	}

	part1 := h.allowlist(flow, PropertyPart1CTypes, DefaultPart1ContentTypes)
	part2 := h.allowlist(flow, PropertyPart2CTypes, DefaultPart2ContentTypes)

	switch action {
	case ActionEdit1:
		err = h.edit1(r, contentType, part1, part2, c)
	case ActionExtractSOAP:
		err = h.extractSOAP(r, part1, part2, c)
	case ActionTransformToEmbedded:
		err = h.transformToEmbedded(r, part1, part2, c)
	}
	if err != nil {
		return nil, nil, err
	}
	return msg, c, nil
}

func (h *Handler) edit1(r *mime.Reader, contentType string, part1, part2 Allowlist, c *changes) error {
	p1, err := nextPart(r, 1, part1)
	if err != nil {
		return err
	}
	doc, err := h.parser.Parse(p1)
	if err != nil {
		return internal(err)
	}
	n, err := RemoveUsernameToken(doc)
	if err != nil {
		return internal(err)
	}
	if n != 1 {
		h.logger.Debug("UsernameToken left in place", "matches", n)
	}
	xml, err := doc.Bytes()
	if err != nil {
		return internal(err)
	}

	var buf bytes.Buffer
	w := mime.NewWriter(&buf, r.Boundary(), contentType)
	if err := writePart(w, p1.Header, bytes.NewReader(xml)); err != nil {
		return internal(err)
	}

	p2, err := nextPart(r, 2, part2)
	if err != nil {
		return err
	}
	if err := writePart(w, p2.Header, p2); err != nil {
		return internal(err)
	}
	if err := w.Close(); err != nil {
		return internal(err)
	}

	c.set(OutputTransformed, string(xml))
	c.replaceContent(buf.Bytes(), "")
	return nil
}

func (h *Handler) extractSOAP(r *mime.Reader, part1, part2 Allowlist, c *changes) error {
	p1, err := nextPart(r, 1, part1)
	if err != nil {
		return err
	}
	xml, err := io.ReadAll(p1)
	if err != nil {
		return internal(fmt.Errorf("failed to read part #1: %w", err))
	}

	p2, err := nextPart(r, 2, part2)
	if err != nil {
		return err
	}
	encoded, err := encodeBase64(p2)
	if err != nil {
		return internal(err)
	}

	c.set(OutputExtractedXML, string(xml))
	c.set(OutputBase64Encoded, encoded)
	return nil
}

func (h *Handler) transformToEmbedded(r *mime.Reader, part1, part2 Allowlist, c *changes) error {
	p1, err := nextPart(r, 1, part1)
	if err != nil {
		return err
	}
	doc, err := h.parser.Parse(p1)
	if err != nil {
		return internal(err)
	}

	p2, err := nextPart(r, 2, part2)
	if err != nil {
		return err
	}
	href, err := EmbedAttachment(doc, p2)
	if err != nil {
		return internal(err)
	}
	if cid := mime.NormalizeContentID(p2.Header.Get("Content-ID")); cid != "" && mime.NormalizeContentID(href) != cid {
		h.logger.Debug("xop:Include does not reference the attachment part",
			"href", href,
			"content_id", cid)
	}

	out, err := doc.Bytes()
	if err != nil {
		return internal(err)
	}
	c.replaceContent(out, mime.ContentTypeTextXML)
	return nil
}

func (h *Handler) getBase64Str(ctx context.Context, msg Message, c *changes) error {
	base := msg.Header(HeaderAttachmentURL)
	if base == "" {
		return inputErrorf("no attachmentURL found")
	}
	documentID := msg.Header(HeaderDocumentID)
	if documentID == "" {
		return inputErrorf("no documentId found")
	}
	if h.fetcher == nil {
		return internal(errors.New("no fetcher configured"))
	}

	url := base + documentID + "/body"
	header := make(http.Header)
	if apiKey := msg.Header(HeaderAPIKey); apiKey != "" {
		header.Set("x-api-key", apiKey)
	}

	h.logger.Debug("fetching attachment", "url", url)
	body, err := h.fetcher.Fetch(ctx, url, header)
	if err != nil {
		return internal(fmt.Errorf("failed to fetch attachment: %w", err))
	}

	c.set(OutputURL, url)
	c.set(OutputBase64Encoded, base64.StdEncoding.EncodeToString(body))
	return nil
}

// nextPart advances r and checks the new part's content type against
// allowed
func nextPart(r *mime.Reader, n int, allowed Allowlist) (*mime.Part, error) {
	part, err := r.NextPart()
	if err != nil {
		return nil, internal(fmt.Errorf("failed to read part #%d: %w", n, err))
	}
	if part == nil {
		return nil, inputErrorf("missing part #%d", n)
	}
	ctype := part.ContentType()
	if ctype == "" {
		return nil, inputErrorf("no content-type found (part%d)", n)
	}
	if !allowed.Acceptable(ctype) {
		return nil, inputErrorf("unexpected content-type for part #%d (%s)", n, ctype)
	}
	return part, nil
}

func writePart(w *mime.Writer, header *mime.Header, body io.Reader) error {
	pw, err := w.NewPart()
	if err != nil {
		return err
	}
	if err := pw.CopyHeader(header); err != nil {
		return err
	}
	_, err = io.Copy(pw, body)
	return err
}

func (h *Handler) fail(flow Flow, action Action, err error) {
	flow.SetVariable(VarPrefix+OutputError, err.Error())
	if IsInputError(err) {
		h.logger.Warn("xop action rejected", "action", action.String(), "error", err)
		return
	}

	h.logger.Error("xop action failed", "action", action.String(), "error", err)
	if h.debug(flow) {
		flow.SetVariable(VarPrefix+OutputStacktrace, stackOf(err))
	}
}

func (h *Handler) resolveAction(flow Flow) Action {
	raw := strings.TrimSpace(h.properties[PropertyAction])
	if raw == "" {
		return DefaultAction
	}
	resolved := strings.TrimSpace(flow.ResolveReferences(raw))
	if resolved == "" {
		return ActionUnspecified
	}
	return ParseAction(resolved)
}

// resolved returns the trimmed property with references resolved
func (h *Handler) resolved(flow Flow, name string) string {
	raw := strings.TrimSpace(h.properties[name])
	if raw == "" {
		return ""
	}
	return strings.TrimSpace(flow.ResolveReferences(raw))
}

func (h *Handler) allowlist(flow Flow, name string, def Allowlist) Allowlist {
	l := ParseAllowlist(h.resolved(flow, name))
	if len(l) == 0 {
		return def
	}
	return l
}

func (h *Handler) debug(flow Flow) bool {
	v, err := strconv.ParseBool(h.resolved(flow, PropertyDebug))
	return err == nil && v
}
