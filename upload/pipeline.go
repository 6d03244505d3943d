// Package upload runs the staged flow that takes a chosen file to a stored
// object plus a lesson record.
//
// The two remote steps are not transactional. When the record insert fails
// after the object was stored, the object is removed again before the
// failure is reported.
package upload

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mgmeyers/pdfworkspace/storage"
)

type Stage int

const (
	Idle Stage = iota
	FileChosen
	MetadataEntry
	Uploading
	Committed
	Failed
)

func (s Stage) String() string {
	switch s {
	case Idle:
		return "idle"
	case FileChosen:
		return "file-chosen"
	case MetadataEntry:
		return "metadata-entry"
	case Uploading:
		return "uploading"
	case Committed:
		return "committed"
	case Failed:
		return "failed"
	}
	return "unknown"
}

const DefaultCompensationTimeout = 30 * time.Second

type ObjectStore interface {
	Upload(ctx context.Context, ownerID string, data []byte, name string) (string, error)
	Remove(ctx context.Context, objectPath string) error
}

type RecordStore interface {
	Insert(ctx context.Context, l storage.Lesson) (string, error)
}

// Session is a snapshot of the pipeline's user-visible state.
type Session struct {
	Stage             Stage
	FileName          string
	FileSize          int64
	MimeType          string
	Title             string
	Description       string
	Error             string
	CompensationError string
	RecordID          string
}

type Option func(*Pipeline)

func WithOwner(ownerID string) Option {
	return func(p *Pipeline) {
		p.owner = ownerID
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithTimeout bounds both remote steps of a submit together. Zero means no
// deadline beyond the caller's context.
func WithTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		p.timeout = d
	}
}

func WithCompensationTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.compensationTimeout = d
		}
	}
}

func WithMaxBytes(n int64) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.maxBytes = n
		}
	}
}

// WithObserver registers fn to be told about every stage change, transient
// ones included. It is called without the pipeline lock held.
func WithObserver(fn func(from, to Stage)) Option {
	return func(p *Pipeline) {
		p.observers = append(p.observers, fn)
	}
}

type transition struct {
	from, to Stage
}

type Pipeline struct {
	objects ObjectStore
	records RecordStore

	owner               string
	maxBytes            int64
	timeout             time.Duration
	compensationTimeout time.Duration
	logger              *zap.Logger
	observers           []func(from, to Stage)

	mu          sync.Mutex
	stage       Stage
	file        *File
	title       string
	description string
	err         error
	compErr     error
	recordID    string
	generation  uint64
	inFlight    bool
	pending     []transition
}

func New(objects ObjectStore, records RecordStore, opts ...Option) *Pipeline {
	p := &Pipeline{
		objects:             objects,
		records:             records,
		maxBytes:            DefaultMaxBytes,
		compensationTimeout: DefaultCompensationTimeout,
		logger:              zap.NewNop(),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// setStage must be called with mu held.
func (p *Pipeline) setStage(to Stage) {
	if p.stage == to {
		return
	}

	p.pending = append(p.pending, transition{from: p.stage, to: to})
	p.stage = to
}

// unlock releases mu and then reports the transitions made while it was held.
func (p *Pipeline) unlock() {
	pending := p.pending
	p.pending = nil
	p.mu.Unlock()

	for _, t := range pending {
		p.logger.Debug("upload stage changed",
			zap.Stringer("from", t.from),
			zap.Stringer("to", t.to))

		for _, fn := range p.observers {
			fn(t.from, t.to)
		}
	}
}

func (p *Pipeline) Stage() Stage {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.stage
}

func (p *Pipeline) Session() Session {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := Session{
		Stage:       p.stage,
		Title:       p.title,
		Description: p.description,
		RecordID:    p.recordID,
	}

	if p.file != nil {
		s.FileName = p.file.Name
		s.FileSize = p.file.Size
		s.MimeType = p.file.MimeType
	}

	if p.err != nil {
		s.Error = p.err.Error()
	}

	if p.compErr != nil {
		s.CompensationError = p.compErr.Error()
	}

	return s
}

// ChooseFile validates f and, if it is acceptable, makes it the file to
// upload. A rejected file leaves the stage where it was.
func (p *Pipeline) ChooseFile(f File) error {
	if f.Size == 0 {
		f.Size = int64(len(f.Data))
	}

	p.mu.Lock()
	defer p.unlock()

	if p.stage == Uploading {
		return ErrUploadInFlight
	}

	if err := validateFile(f, p.maxBytes); err != nil {
		p.err = err
		return err
	}

	p.file = &f
	p.err = nil
	p.compErr = nil
	p.recordID = ""

	p.setStage(FileChosen)
	p.setStage(MetadataEntry)

	return nil
}

func (p *Pipeline) validateSubmit(title string) error {
	switch {
	case p.file == nil:
		return &ValidationError{Field: "file", Message: "Please choose a file to upload"}
	case strings.TrimSpace(title) == "":
		return &ValidationError{Field: "title", Message: "Please enter a title"}
	case p.owner == "":
		return &ValidationError{Field: "owner", Message: "You must be signed in to upload"}
	}

	return nil
}

// Submit uploads the chosen file and creates its lesson record, returning the
// record id. Only one submit runs at a time, even across a Reset, and a
// committed file is not submitted twice.
func (p *Pipeline) Submit(ctx context.Context, title, description string) (string, error) {
	p.mu.Lock()

	// inFlight outlives a Reset; the stage does not
	if p.inFlight || p.stage == Uploading {
		p.unlock()
		return "", ErrUploadInFlight
	}

	if p.stage == Committed {
		p.unlock()
		return "", ErrAlreadyCommitted
	}

	if err := p.validateSubmit(title); err != nil {
		p.err = err
		p.unlock()
		return "", err
	}

	p.title = title
	p.description = description
	p.err = nil
	p.compErr = nil
	p.setStage(Uploading)
	p.inFlight = true

	gen := p.generation
	file := *p.file
	owner := p.owner

	p.unlock()

	id, err := p.run(ctx, owner, file, title, description)

	p.mu.Lock()
	defer p.unlock()

	p.inFlight = false

	if gen != p.generation {
		p.logger.Info("discarding result of upload abandoned by reset",
			zap.String("file", file.Name),
			zap.Error(err))
		return id, err
	}

	if err != nil {
		p.err = err

		var remote *RemoteError
		if errors.As(err, &remote) {
			p.compErr = remote.Compensation
		}

		p.setStage(Failed)
		p.setStage(MetadataEntry)

		return "", err
	}

	p.recordID = id
	p.setStage(Committed)

	return id, nil
}

func (p *Pipeline) run(ctx context.Context, owner string, f File, title, description string) (string, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	objectPath, err := p.objects.Upload(ctx, owner, f.Data, f.Name)
	if err != nil {
		p.logger.Warn("upload failed", zap.String("file", f.Name), zap.Error(err))
		return "", &RemoteError{Op: OpUpload, Err: err}
	}

	id, err := p.records.Insert(ctx, storage.Lesson{
		Title:       title,
		Description: description,
		FilePath:    objectPath,
		Status:      storage.StatusProcessing,
		OwnerID:     owner,
	})
	if err != nil {
		p.logger.Warn("lesson insert failed, removing stored object",
			zap.String("path", objectPath),
			zap.Error(err))

		return "", &RemoteError{
			Op:           OpInsert,
			Err:          err,
			Compensation: p.compensate(ctx, objectPath),
		}
	}

	p.logger.Info("lesson created",
		zap.String("id", id),
		zap.String("path", objectPath))

	return id, nil
}

// compensate removes an object whose record could not be created. It runs
// even when ctx is already done.
func (p *Pipeline) compensate(ctx context.Context, objectPath string) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.compensationTimeout)
	defer cancel()

	if err := p.objects.Remove(ctx, objectPath); err != nil {
		p.logger.Error("failed to remove orphaned object",
			zap.String("path", objectPath),
			zap.Error(err))
		return err
	}

	return nil
}

// Reset returns to Idle from any stage. A submit still in flight finishes
// its remote work but no longer updates the session, and blocks new submits
// until it does.
func (p *Pipeline) Reset() {
	p.mu.Lock()
	defer p.unlock()

	p.generation++
	p.file = nil
	p.title = ""
	p.description = ""
	p.err = nil
	p.compErr = nil
	p.recordID = ""

	p.setStage(Idle)
}
