package chat

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aymanboujjar/lionsgeek-chat/pkg/api"
)

// fakeAPI implements the full API surface with scriptable behavior.
type fakeAPI struct {
	mu         sync.Mutex
	messages   []api.Message
	fetchErr   error
	fetchCalls int

	sendResp    *api.Message
	sendErr     error
	sendBlock   chan struct{} // when non-nil, Send waits on it
	sendStarted chan struct{} // closed once the first Send has begun
	sentReqs    []api.SendRequest

	markReadCalls int
	markReadErr   error
	markReadBlock chan struct{}

	deleteErr     error
	deletedIDs    []int64
	deleteCalls   int
	startedOnce   sync.Once
	unreadCount   int
	unreadErr     error
	unreadCalls   int
	unreadHistory []int
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{sendStarted: make(chan struct{})}
}

func (f *fakeAPI) Messages(_ context.Context, _ int64) ([]api.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchCalls++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	out := make([]api.Message, len(f.messages))
	copy(out, f.messages)
	return out, nil
}

func (f *fakeAPI) Send(_ context.Context, _ int64, req api.SendRequest) (*api.Message, error) {
	f.mu.Lock()
	f.sentReqs = append(f.sentReqs, req)
	block := f.sendBlock
	f.mu.Unlock()
	f.startedOnce.Do(func() { close(f.sendStarted) })
	if block != nil {
		<-block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	resp := *f.sendResp
	return &resp, nil
}

func (f *fakeAPI) MarkRead(_ context.Context, _ int64) error {
	f.mu.Lock()
	f.markReadCalls++
	block := f.markReadBlock
	err := f.markReadErr
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	return err
}

func (f *fakeAPI) DeleteMessage(_ context.Context, messageID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCalls++
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deletedIDs = append(f.deletedIDs, messageID)
	return nil
}

func (f *fakeAPI) UnreadCount(_ context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unreadCalls++
	if f.unreadErr != nil {
		return 0, f.unreadErr
	}
	f.unreadHistory = append(f.unreadHistory, f.unreadCount)
	return f.unreadCount, nil
}

func (f *fakeAPI) setMessages(msgs ...api.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = msgs
}

func (f *fakeAPI) setFetchErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchErr = err
}

func (f *fakeAPI) fetches() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetchCalls
}

func wireMsg(id, senderID int64, body string) api.Message {
	return api.Message{
		ID:        id,
		SenderID:  senderID,
		Body:      body,
		CreatedAt: time.Now().Add(time.Duration(id) * time.Second).UTC().Format(time.RFC3339),
	}
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func entryIDs(entries []Entry) []string {
	out := make([]string, 0, len(entries))
	for _, entry := range entries {
		switch e := entry.(type) {
		case *Message:
			out = append(out, fmt.Sprintf("id:%d", e.ID))
		case *PendingMessage:
			out = append(out, fmt.Sprintf("temp:%d", e.TempID))
		}
	}
	return out
}
