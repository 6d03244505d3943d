package upload

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/mgmeyers/pdfworkspace/storage"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeObjects struct {
	mu        sync.Mutex
	uploads   []string
	removed   []string
	uploadErr error
	removeErr error
	started   chan struct{}
	release   chan struct{}
}

func (f *fakeObjects) Upload(ctx context.Context, ownerID string, data []byte, name string) (string, error) {
	if f.started != nil {
		f.started <- struct{}{}
	}

	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.uploadErr != nil {
		return "", f.uploadErr
	}

	p := ownerID + "/" + name
	f.uploads = append(f.uploads, p)

	return p, nil
}

func (f *fakeObjects) Remove(ctx context.Context, objectPath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.removed = append(f.removed, objectPath)

	if err := ctx.Err(); err != nil {
		return err
	}

	return f.removeErr
}

func (f *fakeObjects) calls() (uploads, removed []string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]string(nil), f.uploads...), append([]string(nil), f.removed...)
}

type fakeRecords struct {
	mu      sync.Mutex
	lessons []storage.Lesson
	err     error
}

func (f *fakeRecords) Insert(_ context.Context, l storage.Lesson) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return "", f.err
	}

	f.lessons = append(f.lessons, l)

	return "lesson-1", nil
}

func pdfFile() File {
	return File{Name: "notes.pdf", MimeType: "application/pdf", Data: []byte("%PDF-1.7")}
}

type stageLog struct {
	mu     sync.Mutex
	stages []Stage
}

func (s *stageLog) observe(_, to Stage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stages = append(s.stages, to)
}

func (s *stageLog) all() []Stage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Stage(nil), s.stages...)
}

func TestChooseFileRejects(t *testing.T) {
	p := New(&fakeObjects{}, &fakeRecords{}, WithOwner("user-1"))

	err := p.ChooseFile(File{Name: "photo.png", MimeType: "image/png", Data: []byte("x")})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Please upload a PDF or Word document", verr.Message)
	assert.Equal(t, Idle, p.Stage())
	assert.Equal(t, "Please upload a PDF or Word document", p.Session().Error)

	big := File{Name: "big.pdf", MimeType: "application/pdf", Size: 11 << 20}
	err = p.ChooseFile(big)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "File size should be less than 10MB", verr.Message)
	assert.Equal(t, Idle, p.Stage())
}

func TestChooseFileAccepts(t *testing.T) {
	log := &stageLog{}
	p := New(&fakeObjects{}, &fakeRecords{}, WithOwner("user-1"), WithObserver(log.observe))

	exact := File{Name: "max.pdf", MimeType: "application/pdf", Size: DefaultMaxBytes}
	require.NoError(t, p.ChooseFile(exact))

	word := File{
		Name:     "essay.docx",
		MimeType: "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		Data:     []byte("PK"),
	}
	require.NoError(t, p.ChooseFile(word))

	s := p.Session()
	assert.Equal(t, MetadataEntry, s.Stage)
	assert.Equal(t, "essay.docx", s.FileName)
	assert.Equal(t, int64(2), s.FileSize)
	assert.Empty(t, s.Error)

	if diff := cmp.Diff([]Stage{FileChosen, MetadataEntry, FileChosen, MetadataEntry}, log.all()); diff != "" {
		t.Errorf("stages mismatch (-want +got):\n%s", diff)
	}
}

func TestSubmitSuccess(t *testing.T) {
	objects := &fakeObjects{}
	records := &fakeRecords{}
	log := &stageLog{}
	p := New(objects, records, WithOwner("user-1"), WithObserver(log.observe))

	require.NoError(t, p.ChooseFile(pdfFile()))

	id, err := p.Submit(context.Background(), "Chapter 1", "intro")
	require.NoError(t, err)
	assert.Equal(t, "lesson-1", id)

	s := p.Session()
	assert.Equal(t, Committed, s.Stage)
	assert.Equal(t, "lesson-1", s.RecordID)

	require.Len(t, records.lessons, 1)
	assert.Equal(t, storage.Lesson{
		Title:       "Chapter 1",
		Description: "intro",
		FilePath:    "user-1/notes.pdf",
		Status:      storage.StatusProcessing,
		OwnerID:     "user-1",
	}, records.lessons[0])

	assert.Equal(t, []Stage{FileChosen, MetadataEntry, Uploading, Committed}, log.all())
}

func TestSubmitValidation(t *testing.T) {
	objects := &fakeObjects{}
	p := New(objects, &fakeRecords{}, WithOwner("user-1"))

	_, err := p.Submit(context.Background(), "title", "")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "file", verr.Field)

	require.NoError(t, p.ChooseFile(pdfFile()))

	_, err = p.Submit(context.Background(), "   ", "")
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "title", verr.Field)
	assert.Equal(t, MetadataEntry, p.Stage())

	anonymous := New(objects, &fakeRecords{})
	require.NoError(t, anonymous.ChooseFile(pdfFile()))
	_, err = anonymous.Submit(context.Background(), "title", "")
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "owner", verr.Field)

	uploads, _ := objects.calls()
	assert.Empty(t, uploads)
}

func TestSubmitCompensatesFailedInsert(t *testing.T) {
	objects := &fakeObjects{}
	insertErr := errors.New("constraint violation")
	log := &stageLog{}
	p := New(objects, &fakeRecords{err: insertErr}, WithOwner("user-1"), WithObserver(log.observe))

	require.NoError(t, p.ChooseFile(pdfFile()))

	_, err := p.Submit(context.Background(), "Chapter 1", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, insertErr)

	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, OpInsert, remote.Op)
	assert.NoError(t, remote.Compensation)

	uploads, removed := objects.calls()
	assert.Equal(t, []string{"user-1/notes.pdf"}, uploads)
	assert.Equal(t, []string{"user-1/notes.pdf"}, removed)

	s := p.Session()
	assert.Equal(t, MetadataEntry, s.Stage)
	assert.Contains(t, s.Error, "constraint violation")
	assert.Equal(t, "notes.pdf", s.FileName, "file is kept for retry")

	assert.Equal(t, []Stage{FileChosen, MetadataEntry, Uploading, Failed, MetadataEntry}, log.all())
}

func TestCompensationFailureKeepsPrimaryError(t *testing.T) {
	removeErr := errors.New("permission denied")
	insertErr := errors.New("insert failed")
	objects := &fakeObjects{removeErr: removeErr}
	p := New(objects, &fakeRecords{err: insertErr}, WithOwner("user-1"))

	require.NoError(t, p.ChooseFile(pdfFile()))

	_, err := p.Submit(context.Background(), "Chapter 1", "")
	assert.ErrorIs(t, err, insertErr)
	assert.NotErrorIs(t, err, removeErr)

	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	assert.ErrorIs(t, remote.Compensation, removeErr)

	s := p.Session()
	assert.Contains(t, s.Error, "insert failed")
	assert.Equal(t, "permission denied", s.CompensationError)
}

func TestUploadFailureSkipsInsertAndCompensation(t *testing.T) {
	uploadErr := errors.New("bucket unavailable")
	objects := &fakeObjects{uploadErr: uploadErr}
	records := &fakeRecords{}
	p := New(objects, records, WithOwner("user-1"))

	require.NoError(t, p.ChooseFile(pdfFile()))

	_, err := p.Submit(context.Background(), "Chapter 1", "")
	assert.ErrorIs(t, err, uploadErr)

	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, OpUpload, remote.Op)

	_, removed := objects.calls()
	assert.Empty(t, removed)
	assert.Empty(t, records.lessons)
	assert.Equal(t, MetadataEntry, p.Stage())
}

func TestSingleUploadInFlight(t *testing.T) {
	objects := &fakeObjects{
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	p := New(objects, &fakeRecords{}, WithOwner("user-1"))
	require.NoError(t, p.ChooseFile(pdfFile()))

	done := make(chan error, 1)
	go func() {
		_, err := p.Submit(context.Background(), "Chapter 1", "")
		done <- err
	}()

	<-objects.started
	assert.Equal(t, Uploading, p.Stage())

	_, err := p.Submit(context.Background(), "Chapter 1", "")
	assert.ErrorIs(t, err, ErrUploadInFlight)
	assert.ErrorIs(t, p.ChooseFile(pdfFile()), ErrUploadInFlight)

	close(objects.release)
	require.NoError(t, <-done)

	uploads, _ := objects.calls()
	assert.Len(t, uploads, 1)
	assert.Equal(t, Committed, p.Stage())
}

func TestResetDuringUpload(t *testing.T) {
	objects := &fakeObjects{
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	p := New(objects, &fakeRecords{err: errors.New("insert failed")}, WithOwner("user-1"))
	require.NoError(t, p.ChooseFile(pdfFile()))

	done := make(chan error, 1)
	go func() {
		_, err := p.Submit(context.Background(), "Chapter 1", "")
		done <- err
	}()

	<-objects.started
	p.Reset()
	assert.Equal(t, Idle, p.Stage())

	close(objects.release)
	assert.Error(t, <-done)

	s := p.Session()
	assert.Equal(t, Idle, s.Stage)
	assert.Empty(t, s.Error)
	assert.Empty(t, s.FileName)

	_, removed := objects.calls()
	assert.Equal(t, []string{"user-1/notes.pdf"}, removed, "abandoned upload is still cleaned up")
}

func TestResetDoesNotAllowSecondUpload(t *testing.T) {
	objects := &fakeObjects{
		started: make(chan struct{}, 2),
		release: make(chan struct{}),
	}
	p := New(objects, &fakeRecords{}, WithOwner("user-1"))
	require.NoError(t, p.ChooseFile(pdfFile()))

	done := make(chan error, 1)
	go func() {
		_, err := p.Submit(context.Background(), "first", "")
		done <- err
	}()

	<-objects.started
	p.Reset()
	require.NoError(t, p.ChooseFile(pdfFile()))

	_, err := p.Submit(context.Background(), "second", "")
	assert.ErrorIs(t, err, ErrUploadInFlight)
	assert.Equal(t, MetadataEntry, p.Stage())

	close(objects.release)
	require.NoError(t, <-done)

	uploads, _ := objects.calls()
	assert.Len(t, uploads, 1, "refused submit never reached the store")
	assert.Equal(t, MetadataEntry, p.Stage(), "abandoned result left the new session alone")

	id, err := p.Submit(context.Background(), "second", "")
	require.NoError(t, err)
	assert.Equal(t, "lesson-1", id)

	uploads, _ = objects.calls()
	assert.Len(t, uploads, 2)
}

func TestCommittedFileIsNotSubmittedTwice(t *testing.T) {
	objects := &fakeObjects{}
	records := &fakeRecords{}
	p := New(objects, records, WithOwner("user-1"))
	require.NoError(t, p.ChooseFile(pdfFile()))

	_, err := p.Submit(context.Background(), "Chapter 1", "")
	require.NoError(t, err)

	_, err = p.Submit(context.Background(), "Chapter 1", "")
	assert.ErrorIs(t, err, ErrAlreadyCommitted)
	assert.Equal(t, Committed, p.Stage())

	uploads, _ := objects.calls()
	assert.Len(t, uploads, 1)
	assert.Len(t, records.lessons, 1)

	require.NoError(t, p.ChooseFile(pdfFile()))
	_, err = p.Submit(context.Background(), "Chapter 2", "")
	require.NoError(t, err)
	assert.Len(t, records.lessons, 2)
}

func TestSubmitTimeout(t *testing.T) {
	objects := &fakeObjects{release: make(chan struct{})}
	p := New(objects, &fakeRecords{}, WithOwner("user-1"), WithTimeout(20*time.Millisecond))
	require.NoError(t, p.ChooseFile(pdfFile()))

	_, err := p.Submit(context.Background(), "Chapter 1", "")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, MetadataEntry, p.Stage())
}

func TestCompensationIgnoresCallerCancellation(t *testing.T) {
	objects := &fakeObjects{}
	p := New(objects, &fakeRecords{err: errors.New("insert failed")}, WithOwner("user-1"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cancel()
	require.NoError(t, p.compensate(ctx, "user-1/notes.pdf"))

	_, removed := objects.calls()
	assert.Equal(t, []string{"user-1/notes.pdf"}, removed)
}

func TestFileFromPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n1 0 obj\n<<>>\nendobj\n"), 0o644))

	f, err := FileFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "doc.pdf", f.Name)
	assert.Equal(t, "application/pdf", f.MimeType)
	assert.Equal(t, int64(len(f.Data)), f.Size)

	_, err = FileFromPath(filepath.Join(t.TempDir(), "missing.pdf"))
	assert.Error(t, err)
}

func TestStageString(t *testing.T) {
	assert.Equal(t, "metadata-entry", MetadataEntry.String())
	assert.Equal(t, "unknown", Stage(42).String())
}
