package serve

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/praetorian-inc/hsmatch/pkg/engine"
	"github.com/praetorian-inc/hsmatch/pkg/log"
	"github.com/praetorian-inc/hsmatch/pkg/matcher"
	"github.com/praetorian-inc/hsmatch/pkg/store"
)

// Version is the server protocol version
const Version = "2.0.0"

// errNoCatalog is returned by catalog requests when no store is configured.
var errNoCatalog = errors.New("no catalog configured")

// Server bridges NDJSON requests to matcher databases and scratches. Objects
// are referenced by numeric handles that stay valid until released or until
// the server stops.
type Server struct {
	encoder   *json.Encoder
	decoder   *json.Decoder
	databases *handles[*matcher.Database]
	scratches *handles[*matcher.Scratch]
	catalog   store.Store
}

// Option configures a Server.
type Option func(*Server)

// WithCatalog enables the catalog_* requests against st. The server does not
// close st.
func WithCatalog(st store.Store) Option {
	return func(s *Server) { s.catalog = st }
}

// NewServer creates a new streaming server
func NewServer(in io.Reader, out io.Writer, opts ...Option) *Server {
	s := &Server{
		encoder:   json.NewEncoder(out),
		decoder:   json.NewDecoder(bufio.NewReader(in)),
		databases: newHandles[*matcher.Database]("database"),
		scratches: newHandles[*matcher.Scratch]("scratch"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run starts the server main loop. Every handle still open when Run returns
// is released.
func (s *Server) Run(ctx context.Context) error {
	defer s.shutdown()

	// Send ready signal
	s.sendReady()

	reqChan := make(chan Request, 1)
	errChan := make(chan error, 1)

	go func() {
		for {
			var req Request
			if err := s.decoder.Decode(&req); err != nil {
				errChan <- err
				return
			}
			select {
			case reqChan <- req:
			case <-ctx.Done():
				return
			}
		}
	}()

	// Process requests until stdin closes or context cancels
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errChan:
			// Drain any pending requests before handling EOF
			for {
				select {
				case req := <-reqChan:
					if s.processRequest(req) {
						return nil
					}
				default:
					if err == io.EOF {
						return nil
					}
					s.send(Response{Type: "decode", Error: &ErrorData{Kind: "request", Message: err.Error()}})
					return nil
				}
			}
		case req := <-reqChan:
			if s.processRequest(req) {
				return nil
			}
		}
	}
}

// processRequest handles a single request and returns true if the server should exit
func (s *Server) processRequest(req Request) bool {
	var (
		data any
		err  error
	)
	switch req.Type {
	case "compile":
		data, err = s.handleCompile(req.Payload)
	case "deserialize":
		data, err = s.handleDeserialize(req.Payload)
	case "expression_info":
		data, err = s.handleExpressionInfo(req.Payload)
	case "current_platform":
		data, err = matcher.CurrentPlatform()
	case "version":
		data = ReadyData{Version: Version, Engine: matcher.Version(), Backend: matcher.BackendName()}
	case "info":
		data, err = s.handleInfo(req.Payload)
	case "serialize":
		data, err = s.handleSerialize(req.Payload)
	case "make_scratch":
		data, err = s.handleMakeScratch(req.Payload)
	case "scratch_grow":
		data, err = s.handleScratchGrow(req.Payload)
	case "scratch_clone":
		data, err = s.handleScratchClone(req.Payload)
	case "scratch_size":
		data, err = s.handleScratchSize(req.Payload)
	case "scan":
		data, err = s.handleScan(req.Payload)
	case "scan_vectored":
		data, err = s.handleScanVectored(req.Payload)
	case "release":
		data, err = s.handleRelease(req.Payload)
	case "catalog_put":
		data, err = s.handleCatalogPut(req.Payload)
	case "catalog_get":
		data, err = s.handleCatalogGet(req.Payload)
	case "catalog_list":
		data, err = s.handleCatalogList()
	case "catalog_delete":
		data, err = s.handleCatalogDelete(req.Payload)
	case "close":
		return true
	default:
		err = fmt.Errorf("unknown request type: %s", req.Type)
	}

	if err != nil {
		s.send(Response{Type: req.Type, ID: req.ID, Error: errorData(err)})
		return false
	}
	raw, err := json.Marshal(data)
	if err != nil {
		s.send(Response{Type: req.Type, ID: req.ID, Error: &ErrorData{Kind: "request", Message: err.Error()}})
		return false
	}
	s.send(Response{Success: true, Type: req.Type, ID: req.ID, Data: raw})
	return false
}

func (s *Server) send(resp Response) {
	if err := s.encoder.Encode(resp); err != nil {
		log.Warn().Err(err).Str("type", resp.Type).Msg("failed to write response")
	}
}

func (s *Server) sendReady() {
	data, _ := json.Marshal(ReadyData{Version: Version, Engine: matcher.Version(), Backend: matcher.BackendName()})
	s.send(Response{
		Success: true,
		Type:    "ready",
		Data:    data,
	})
}

// errorData classifies err for the host.
func errorData(err error) *ErrorData {
	d := &ErrorData{Kind: "request", Message: err.Error()}

	var usage *matcher.UsageError
	var compile *engine.CompileError
	var eng *engine.Error
	switch {
	case errors.As(err, &usage):
		d.Kind = "usage"
		d.Field = usage.Field
	case errors.Is(err, matcher.ErrReleased):
		d.Kind = "released"
	case errors.As(err, &compile):
		d.Kind = "compile"
		d.Code = engine.CodeCompilerError.String()
		index := compile.Expression
		d.Expression = &index
	case errors.As(err, &eng):
		d.Kind = "engine"
		d.Code = eng.Code.String()
	}
	return d
}

// decode unmarshals a request payload. An empty payload leaves v zeroed.
func decode(payload json.RawMessage, v any) error {
	if absent(payload) {
		return nil
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return &matcher.UsageError{Field: "payload", Message: err.Error()}
	}
	return nil
}

func (s *Server) addDatabase(db *matcher.Database) DatabaseData {
	return DatabaseData{Database: s.databases.add(db), Mode: db.Mode().String()}
}

func (s *Server) handleCompile(payload json.RawMessage) (any, error) {
	var p CompilePayload
	if err := decode(payload, &p); err != nil {
		return nil, err
	}
	req, err := compileRequest(&p)
	if err != nil {
		return nil, err
	}
	db, err := matcher.Compile(req)
	if err != nil {
		return nil, err
	}
	return s.addDatabase(db), nil
}

func (s *Server) handleDeserialize(payload json.RawMessage) (any, error) {
	var p DeserializePayload
	if err := decode(payload, &p); err != nil {
		return nil, err
	}
	db, err := matcher.Deserialize(p.Blob)
	if err != nil {
		return nil, err
	}
	return s.addDatabase(db), nil
}

func (s *Server) handleExpressionInfo(payload json.RawMessage) (any, error) {
	var p ExpressionInfoPayload
	if err := decode(payload, &p); err != nil {
		return nil, err
	}
	flags, err := parseFlags(p.Flags, "flags")
	if err != nil {
		return nil, err
	}
	return matcher.ExpressionInfo(p.Expression, flags)
}

func (s *Server) handleInfo(payload json.RawMessage) (any, error) {
	var p HandlePayload
	if err := decode(payload, &p); err != nil {
		return nil, err
	}
	db, err := s.databases.get(p.Database)
	if err != nil {
		return nil, err
	}
	info, err := db.Info()
	if err != nil {
		return nil, err
	}
	size, err := db.Size()
	if err != nil {
		return nil, err
	}
	return map[string]any{"info": info, "size": size, "mode": db.Mode().String()}, nil
}

func (s *Server) handleSerialize(payload json.RawMessage) (any, error) {
	var p HandlePayload
	if err := decode(payload, &p); err != nil {
		return nil, err
	}
	db, err := s.databases.get(p.Database)
	if err != nil {
		return nil, err
	}
	blob, err := db.Serialize()
	if err != nil {
		return nil, err
	}
	return DeserializePayload{Blob: blob}, nil
}

// handleMakeScratch allocates a scratch for a database. When a scratch
// handle is also given it is grown in place and the same handle returned.
func (s *Server) handleMakeScratch(payload json.RawMessage) (any, error) {
	var p HandlePayload
	if err := decode(payload, &p); err != nil {
		return nil, err
	}
	if p.Scratch != nil {
		return s.handleScratchGrow(payload)
	}
	db, err := s.databases.get(p.Database)
	if err != nil {
		return nil, err
	}
	scratch, err := db.MakeScratch()
	if err != nil {
		return nil, err
	}
	return ScratchData{Scratch: s.scratches.add(scratch)}, nil
}

func (s *Server) handleScratchGrow(payload json.RawMessage) (any, error) {
	var p HandlePayload
	if err := decode(payload, &p); err != nil {
		return nil, err
	}
	scratch, err := s.scratches.get(p.Scratch)
	if err != nil {
		return nil, err
	}
	db, err := s.databases.get(p.Database)
	if err != nil {
		return nil, err
	}
	if err := scratch.Grow(db); err != nil {
		return nil, err
	}
	return ScratchData{Scratch: *p.Scratch}, nil
}

func (s *Server) handleScratchClone(payload json.RawMessage) (any, error) {
	var p HandlePayload
	if err := decode(payload, &p); err != nil {
		return nil, err
	}
	scratch, err := s.scratches.get(p.Scratch)
	if err != nil {
		return nil, err
	}
	clone, err := scratch.Clone()
	if err != nil {
		return nil, err
	}
	return ScratchData{Scratch: s.scratches.add(clone)}, nil
}

func (s *Server) handleScratchSize(payload json.RawMessage) (any, error) {
	var p HandlePayload
	if err := decode(payload, &p); err != nil {
		return nil, err
	}
	scratch, err := s.scratches.get(p.Scratch)
	if err != nil {
		return nil, err
	}
	size, err := scratch.Size()
	if err != nil {
		return nil, err
	}
	return map[string]int{"size": size}, nil
}

func (s *Server) scanHandles(p *HandlePayload) (*matcher.Database, *matcher.Scratch, error) {
	db, err := s.databases.get(p.Database)
	if err != nil {
		return nil, nil, err
	}
	scratch, err := s.scratches.get(p.Scratch)
	if err != nil {
		return nil, nil, err
	}
	return db, scratch, nil
}

func (s *Server) handleScan(payload json.RawMessage) (any, error) {
	var p ScanPayload
	if err := decode(payload, &p); err != nil {
		return nil, err
	}
	db, scratch, err := s.scanHandles(&p.HandlePayload)
	if err != nil {
		return nil, err
	}
	data := p.Data
	if len(data) == 0 {
		data = []byte(p.Content)
	}
	records, err := db.Scan(data, scratch)
	if err != nil {
		return nil, err
	}
	return ScanData{Matches: records}, nil
}

func (s *Server) handleScanVectored(payload json.RawMessage) (any, error) {
	var p ScanVectoredPayload
	if err := decode(payload, &p); err != nil {
		return nil, err
	}
	db, scratch, err := s.scanHandles(&p.HandlePayload)
	if err != nil {
		return nil, err
	}
	records, err := db.ScanVectored(p.Blocks, scratch)
	if err != nil {
		return nil, err
	}
	return ScanData{Matches: records}, nil
}

// handleRelease releases exactly one handle. Releasing a handle twice
// reports a "released" error.
func (s *Server) handleRelease(payload json.RawMessage) (any, error) {
	var p HandlePayload
	if err := decode(payload, &p); err != nil {
		return nil, err
	}
	switch {
	case p.Database != nil && p.Scratch != nil:
		return nil, &matcher.UsageError{Message: "specify only one of 'database' or 'scratch'"}
	case p.Database != nil:
		return map[string]uint64{"database": *p.Database}, s.databases.release(p.Database)
	case p.Scratch != nil:
		return map[string]uint64{"scratch": *p.Scratch}, s.scratches.release(p.Scratch)
	default:
		return nil, &matcher.UsageError{Message: "specify 'database' or 'scratch'"}
	}
}

func (s *Server) handleCatalogPut(payload json.RawMessage) (any, error) {
	if s.catalog == nil {
		return nil, errNoCatalog
	}
	var p CatalogPayload
	if err := decode(payload, &p); err != nil {
		return nil, err
	}
	db, err := s.databases.get(p.Database)
	if err != nil {
		return nil, err
	}
	entry, err := store.EntryFor(p.Name, db)
	if err != nil {
		return nil, err
	}
	if err := s.catalog.Put(entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *Server) handleCatalogGet(payload json.RawMessage) (any, error) {
	if s.catalog == nil {
		return nil, errNoCatalog
	}
	var p CatalogPayload
	if err := decode(payload, &p); err != nil {
		return nil, err
	}
	entry, err := s.catalog.Get(p.Name)
	if err != nil {
		return nil, err
	}
	db, err := entry.Open()
	if err != nil {
		return nil, err
	}
	return s.addDatabase(db), nil
}

func (s *Server) handleCatalogList() (any, error) {
	if s.catalog == nil {
		return nil, errNoCatalog
	}
	entries, err := s.catalog.List()
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []*store.Entry{}
	}
	return entries, nil
}

func (s *Server) handleCatalogDelete(payload json.RawMessage) (any, error) {
	if s.catalog == nil {
		return nil, errNoCatalog
	}
	var p CatalogPayload
	if err := decode(payload, &p); err != nil {
		return nil, err
	}
	return map[string]string{"name": p.Name}, s.catalog.Delete(p.Name)
}

// shutdown releases every open handle, scratches first.
func (s *Server) shutdown() {
	if n := s.scratches.len() + s.databases.len(); n > 0 {
		log.Debug().Int("handles", n).Msg("releasing open handles")
	}
	for _, id := range s.scratches.ids() {
		if err := s.scratches.release(&id); err != nil {
			log.Warn().Err(err).Uint64("scratch", id).Msg("failed to release scratch")
		}
	}
	for _, id := range s.databases.ids() {
		if err := s.databases.release(&id); err != nil {
			log.Warn().Err(err).Uint64("database", id).Msg("failed to release database")
		}
	}
}
