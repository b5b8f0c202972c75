package server

import (
	"fmt"
	"strings"
	"sync"
	"unicode"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	"github.com/chazu/consttab/compiler"

	_ "github.com/tliron/commonlog/simple"
)

const lspName = "consttab-lsp"

// Server provides LSP editor features for .tags documents over stdio.
type Server struct {
	mu    sync.Mutex
	docs  map[string]string         // URI → full document content
	files map[string]*compiler.File // URI → most recent parse of that content

	handler protocol.Handler
	server  *glspserver.Server
	version string
}

// New creates an LSP server. With verbose set, the underlying transport
// logs each request to stderr.
func New(verbose bool) *Server {
	s := &Server{
		docs:    make(map[string]string),
		files:   make(map[string]*compiler.File),
		version: "0.1.0",
	}

	s.handler = protocol.Handler{
		Initialize:  s.initialize,
		Initialized: s.initialized,
		Shutdown:    s.shutdown,
		SetTrace:    s.setTrace,

		TextDocumentDidOpen:   s.textDocumentDidOpen,
		TextDocumentDidChange: s.textDocumentDidChange,
		TextDocumentDidClose:  s.textDocumentDidClose,

		TextDocumentCompletion: s.textDocumentCompletion,
		TextDocumentHover:      s.textDocumentHover,
		TextDocumentDefinition: s.textDocumentDefinition,
		TextDocumentReferences: s.textDocumentReferences,
	}

	s.server = glspserver.NewServer(&s.handler, lspName, verbose)

	return s
}

// RunStdio serves LSP on stdin/stdout. Blocks until the client disconnects.
func (s *Server) RunStdio() error {
	return s.server.RunStdio()
}

// --- LSP lifecycle handlers ---

func (s *Server) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	commonlog.NewInfoMessage(0, "consttab LSP initializing")

	capabilities := s.handler.CreateServerCapabilities()

	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &syncKind,
	}

	capabilities.CompletionProvider = &protocol.CompletionOptions{
		TriggerCharacters: []string{" ", "="},
	}

	capabilities.HoverProvider = true
	capabilities.DefinitionProvider = true
	capabilities.ReferencesProvider = true

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lspName,
			Version: &s.version,
		},
	}, nil
}

func (s *Server) initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	return nil
}

func (s *Server) shutdown(ctx *glsp.Context) error {
	return nil
}

func (s *Server) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	return nil
}

// --- Document synchronization ---

func (s *Server) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	uri := params.TextDocument.URI
	text := params.TextDocument.Text

	s.mu.Lock()
	s.docs[string(uri)] = text
	s.mu.Unlock()

	s.publishDiagnostics(ctx, uri, text)
	return nil
}

func (s *Server) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	uri := params.TextDocument.URI

	// With Full sync, the last change event contains the full text
	if len(params.ContentChanges) > 0 {
		last := params.ContentChanges[len(params.ContentChanges)-1]
		if whole, ok := last.(protocol.TextDocumentContentChangeEventWhole); ok {
			s.mu.Lock()
			s.docs[string(uri)] = whole.Text
			s.mu.Unlock()

			s.publishDiagnostics(ctx, uri, whole.Text)
		}
	}
	return nil
}

func (s *Server) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := params.TextDocument.URI

	s.mu.Lock()
	delete(s.docs, string(uri))
	delete(s.files, string(uri))
	s.mu.Unlock()

	// Clear diagnostics for the closed document
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: []protocol.Diagnostic{},
	})
	return nil
}

// --- Language features ---

func (s *Server) textDocumentCompletion(ctx *glsp.Context, params *protocol.CompletionParams) (any, error) {
	uri := params.TextDocument.URI
	pos := params.Position

	s.mu.Lock()
	text, ok := s.docs[string(uri)]
	file := s.files[string(uri)]
	s.mu.Unlock()

	if !ok {
		return nil, nil
	}

	prefix := extractPrefix(text, pos)
	if prefix == "" {
		return nil, nil
	}

	return s.complete(file, prefix), nil
}

func (s *Server) textDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	uri := params.TextDocument.URI
	pos := params.Position

	s.mu.Lock()
	text, ok := s.docs[string(uri)]
	file := s.files[string(uri)]
	s.mu.Unlock()

	if !ok || file == nil {
		return nil, nil
	}

	word := extractWord(text, pos)
	if word == "" {
		return nil, nil
	}

	return s.hover(file, word), nil
}

func (s *Server) textDocumentDefinition(ctx *glsp.Context, params *protocol.DefinitionParams) (any, error) {
	uri := params.TextDocument.URI
	pos := params.Position

	s.mu.Lock()
	text, ok := s.docs[string(uri)]
	file := s.files[string(uri)]
	s.mu.Unlock()

	if !ok || file == nil {
		return nil, nil
	}

	word := extractWord(text, pos)
	if word == "" {
		return nil, nil
	}

	locations := s.definition(uri, file, word)
	if len(locations) == 0 {
		return nil, nil
	}
	return locations, nil
}

func (s *Server) textDocumentReferences(ctx *glsp.Context, params *protocol.ReferenceParams) ([]protocol.Location, error) {
	uri := params.TextDocument.URI
	pos := params.Position

	s.mu.Lock()
	text, ok := s.docs[string(uri)]
	file := s.files[string(uri)]
	s.mu.Unlock()

	if !ok || file == nil {
		return nil, nil
	}

	word := extractWord(text, pos)
	if word == "" {
		return nil, nil
	}

	return s.references(uri, file, text, word), nil
}

// --- Completion ---

func (s *Server) complete(file *compiler.File, prefix string) []protocol.CompletionItem {
	var items []protocol.CompletionItem
	lowerPrefix := strings.ToLower(prefix)

	add := func(label string, kind protocol.CompletionItemKind, detail string) {
		if !strings.HasPrefix(strings.ToLower(label), lowerPrefix) {
			return
		}
		items = append(items, protocol.CompletionItem{
			Label:      label,
			Kind:       &kind,
			Detail:     &detail,
			InsertText: &label,
		})
	}

	for _, kw := range []string{"package", "import", "tagset", "record", "width", "derive"} {
		add(kw, protocol.CompletionItemKindKeyword, "keyword")
	}
	for _, w := range compiler.SupportedWidths() {
		add(w, protocol.CompletionItemKindValue, fmt.Sprintf("backing width (%s)", backingType(w)))
	}
	for _, d := range compiler.SupportedDerives() {
		add(d, protocol.CompletionItemKindProperty, "derive capability")
	}

	if file != nil {
		for _, ts := range file.TagSets {
			add(ts.Name, protocol.CompletionItemKindClass, fmt.Sprintf("tagset (%s)", ts.EffectiveWidth()))
			if ts.Record != nil {
				add(ts.Record.Name, protocol.CompletionItemKindStruct, fmt.Sprintf("record of %s", ts.Name))
				for _, f := range ts.Record.Fields {
					add(f.Name, protocol.CompletionItemKindField, fmt.Sprintf("%s field", f.Type))
				}
			}
			for _, t := range ts.Tags {
				add(t.Name, protocol.CompletionItemKindEnumMember, fmt.Sprintf("tag %d of %s", ts.Ordinal(t.Name), ts.Name))
			}
		}
	}

	// Limit results
	const maxItems = 100
	if len(items) > maxItems {
		items = items[:maxItems]
	}

	return items
}

// --- Hover ---

func (s *Server) hover(file *compiler.File, word string) *protocol.Hover {
	// Declared names first, widths and derives as a fallback
	if h := s.hoverDecl(file, word); h != nil {
		return h
	}

	if isWidth(word) {
		mdText := fmt.Sprintf("**width %s**\n\nBacks the tag type with `%s`; holds up to %s tags.",
			word, backingType(word), widthCapacity(word))
		return markdownHover(mdText)
	}

	if desc, ok := deriveDocs[word]; ok {
		return markdownHover(fmt.Sprintf("**derive %s**\n\n%s", word, desc))
	}

	return nil
}

func (s *Server) hoverDecl(file *compiler.File, word string) *protocol.Hover {
	for _, ts := range file.TagSets {
		if ts.Name == word {
			return hoverTagSet(ts)
		}
		if ts.Record != nil && ts.Record.Name == word {
			return hoverRecord(ts)
		}
		if t := ts.FindTag(word); t != nil {
			return hoverTag(ts, t)
		}
		if ts.Record != nil {
			for _, f := range ts.Record.Fields {
				if f.Name == word {
					return hoverField(ts, f)
				}
			}
		}
	}
	return nil
}

func hoverTagSet(ts *compiler.TagSet) *protocol.Hover {
	var b strings.Builder
	fmt.Fprintf(&b, "**tagset %s**", ts.Name)
	if doc := docText(ts.Doc); doc != "" {
		b.WriteString("\n\n---\n\n")
		b.WriteString(doc)
	}
	b.WriteString("\n\n")
	if ts.Width == "" {
		fmt.Fprintf(&b, "Backing width: `%s` (default)\n\n", compiler.DefaultWidth)
	} else {
		fmt.Fprintf(&b, "Backing width: `%s`\n\n", ts.Width)
	}
	if len(ts.Derives) > 0 {
		names := make([]string, len(ts.Derives))
		for i, d := range ts.Derives {
			names[i] = "`" + d.Name + "`"
		}
		fmt.Fprintf(&b, "Derives: %s\n\n", strings.Join(names, ", "))
	}
	record := "none"
	if ts.Record != nil {
		record = ts.Record.Name
	}
	fmt.Fprintf(&b, "%d tags, record `%s`", len(ts.Tags), record)
	return markdownHover(b.String())
}

func hoverRecord(ts *compiler.TagSet) *protocol.Hover {
	rec := ts.Record
	var b strings.Builder
	fmt.Fprintf(&b, "**record %s** of tagset %s", rec.Name, ts.Name)
	if doc := docText(rec.Doc); doc != "" {
		b.WriteString("\n\n---\n\n")
		b.WriteString(doc)
	}
	b.WriteString("\n\n```go\ntype ")
	b.WriteString(rec.Name)
	if len(rec.Fields) == 0 {
		b.WriteString(" struct{}\n```")
		return markdownHover(b.String())
	}
	b.WriteString(" struct {\n")
	for _, f := range rec.Fields {
		fmt.Fprintf(&b, "\t%s %s", f.Name, f.Type)
		if f.Tag != "" {
			fmt.Fprintf(&b, " %s", f.Tag)
		}
		b.WriteString("\n")
	}
	b.WriteString("}\n```")
	return markdownHover(b.String())
}

func hoverTag(ts *compiler.TagSet, t *compiler.TagEntry) *protocol.Hover {
	var b strings.Builder
	fmt.Fprintf(&b, "**%s** tag %d of %s", t.Name, ts.Ordinal(t.Name), ts.Name)
	if doc := docText(t.Doc); doc != "" {
		b.WriteString("\n\n---\n\n")
		b.WriteString(doc)
	}
	fmt.Fprintf(&b, "\n\n```go\n%s\n```", t.Init)
	return markdownHover(b.String())
}

func hoverField(ts *compiler.TagSet, f *compiler.Field) *protocol.Hover {
	var b strings.Builder
	fmt.Fprintf(&b, "**%s** field of %s", f.Name, ts.Record.Name)
	if doc := docText(f.Doc); doc != "" {
		b.WriteString("\n\n---\n\n")
		b.WriteString(doc)
	}
	fmt.Fprintf(&b, "\n\nType: `%s`", f.Type)
	if f.Tag != "" {
		fmt.Fprintf(&b, "\n\nTag: `%s`", f.Tag)
	}
	return markdownHover(b.String())
}

func markdownHover(value string) *protocol.Hover {
	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: value,
		},
	}
}

// deriveDocs summarizes what each capability adds to the generated code.
var deriveDocs = map[string]string{
	compiler.DeriveJSON:  "Adds `MarshalJSON` and `UnmarshalJSON`, encoding tags as their name strings.",
	compiler.DeriveText:  "Adds `MarshalText` and `UnmarshalText` for text-keyed encodings.",
	compiler.DeriveParse: "Adds a `Parse<TagSet>` function converting a name string to its tag.",
	compiler.DeriveSQL:   "Adds `Value` and `Scan` so tags round-trip through database/sql columns.",
}

// --- Definition and references ---

func (s *Server) definition(uri protocol.DocumentUri, file *compiler.File, word string) []protocol.Location {
	var locations []protocol.Location
	appendLoc := func(sp compiler.Span) {
		locations = append(locations, protocol.Location{
			URI:   uri,
			Range: spanRange(sp),
		})
	}

	for _, ts := range file.TagSets {
		if ts.Name == word {
			appendLoc(ts.SpanVal)
			continue
		}
		if ts.Record != nil && ts.Record.Name == word {
			appendLoc(ts.Record.SpanVal)
		}
		if t := ts.FindTag(word); t != nil {
			appendLoc(t.SpanVal)
		}
		if ts.Record != nil {
			for _, f := range ts.Record.Fields {
				if f.Name == word {
					appendLoc(f.SpanVal)
				}
			}
		}
	}
	return locations
}

// references reports every identifier-boundary occurrence of a declared
// name, which covers tag mentions inside initializer expressions.
func (s *Server) references(uri protocol.DocumentUri, file *compiler.File, text, word string) []protocol.Location {
	if len(s.definition(uri, file, word)) == 0 {
		return nil
	}

	var locations []protocol.Location
	for lineNo, line := range strings.Split(text, "\n") {
		for _, col := range wordOccurrences(line, word) {
			locations = append(locations, protocol.Location{
				URI: uri,
				Range: protocol.Range{
					Start: protocol.Position{Line: protocol.UInteger(lineNo), Character: protocol.UInteger(col)},
					End:   protocol.Position{Line: protocol.UInteger(lineNo), Character: protocol.UInteger(col + len(word))},
				},
			})
		}
	}
	return locations
}

// wordOccurrences returns the start columns of identifier-boundary
// matches of word within line.
func wordOccurrences(line, word string) []int {
	var cols []int
	for i := 0; i+len(word) <= len(line); {
		j := strings.Index(line[i:], word)
		if j < 0 {
			break
		}
		start := i + j
		end := start + len(word)
		before := start == 0 || !isIdentByte(line[start-1])
		after := end == len(line) || !isIdentByte(line[end])
		if before && after {
			cols = append(cols, start)
		}
		i = start + 1
	}
	return cols
}

func isIdentByte(b byte) bool {
	ch := rune(b)
	return unicode.IsLetter(ch) || unicode.IsDigit(ch) || ch == '_'
}

// --- Diagnostics ---

func (s *Server) publishDiagnostics(ctx *glsp.Context, uri protocol.DocumentUri, text string) {
	file, parseDiags := compiler.Parse(text)
	v := compiler.NewValidator()
	v.ValidateFile(file)

	s.mu.Lock()
	s.files[string(uri)] = file
	s.mu.Unlock()

	var diagnostics []protocol.Diagnostic
	for _, d := range parseDiags {
		diagnostics = append(diagnostics, lspDiagnostic(d, protocol.DiagnosticSeverityError))
	}
	for _, d := range v.Errors() {
		diagnostics = append(diagnostics, lspDiagnostic(d, protocol.DiagnosticSeverityError))
	}
	for _, d := range v.Warnings() {
		diagnostics = append(diagnostics, lspDiagnostic(d, protocol.DiagnosticSeverityWarning))
	}

	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics,
	})
}

func lspDiagnostic(d *compiler.Diagnostic, severity protocol.DiagnosticSeverity) protocol.Diagnostic {
	sev := severity
	source := lspName
	return protocol.Diagnostic{
		Range:    spanRange(d.Span),
		Severity: &sev,
		Source:   &source,
		Message:  d.Msg,
	}
}

// spanRange converts a 1-based source span to a 0-based LSP range.
func spanRange(sp compiler.Span) protocol.Range {
	return protocol.Range{
		Start: lspPosition(sp.Start),
		End:   lspPosition(sp.End),
	}
}

func lspPosition(p compiler.Position) protocol.Position {
	line := p.Line - 1
	if line < 0 {
		line = 0
	}
	col := p.Column - 1
	if col < 0 {
		col = 0
	}
	return protocol.Position{
		Line:      protocol.UInteger(line),
		Character: protocol.UInteger(col),
	}
}

// --- Text extraction helpers ---

// extractPrefix returns the word fragment before the cursor for completion.
func extractPrefix(text string, pos protocol.Position) string {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return ""
	}
	line := lines[pos.Line]
	col := int(pos.Character)
	if col > len(line) {
		col = len(line)
	}

	// Walk backwards from cursor to find the start of the identifier
	start := col
	for start > 0 {
		if isIdentByte(line[start-1]) {
			start--
		} else {
			break
		}
	}

	if start == col {
		return ""
	}

	return line[start:col]
}

// extractWord returns the full identifier under the cursor.
func extractWord(text string, pos protocol.Position) string {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return ""
	}
	line := lines[pos.Line]
	col := int(pos.Character)
	if col > len(line) {
		col = len(line)
	}

	// Find start
	start := col
	for start > 0 {
		if isIdentByte(line[start-1]) {
			start--
		} else {
			break
		}
	}

	// Find end
	end := col
	for end < len(line) {
		if isIdentByte(line[end]) {
			end++
		} else {
			break
		}
	}

	if start == end {
		return ""
	}

	return line[start:end]
}

// docText joins raw doc comment lines into one prose string.
func docText(doc []string) string {
	var parts []string
	for _, line := range doc {
		line = strings.TrimPrefix(line, "//")
		line = strings.TrimSpace(line)
		if line != "" {
			parts = append(parts, line)
		}
	}
	return strings.Join(parts, " ")
}

func isWidth(word string) bool {
	for _, w := range compiler.SupportedWidths() {
		if w == word {
			return true
		}
	}
	return false
}

// backingType returns the Go type behind a backing width.
func backingType(width string) string {
	switch width {
	case "u8":
		return "uint8"
	case "u16":
		return "uint16"
	case "u64":
		return "uint64"
	default:
		return "uint32"
	}
}

// widthCapacity returns the tag count a backing width can hold, as text.
func widthCapacity(width string) string {
	switch width {
	case "u8":
		return "256"
	case "u16":
		return "65536"
	case "u32":
		return "4294967296"
	default:
		return "18446744073709551616"
	}
}

func boolPtr(b bool) *bool {
	return &b
}
