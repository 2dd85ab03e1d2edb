package commands

import (
	"context"
	"sync"

	"github.com/TheusHen/oscore/oscore/protocol"
)

// resourceTree stores payloads by Uri-Path.
type resourceTree struct {
	mu    sync.RWMutex
	items map[string][]byte
}

func newResourceTree() *resourceTree {
	return &resourceTree{items: map[string][]byte{}}
}

func (r *resourceTree) ServeOSCORE(_ context.Context, req *protocol.Message) *protocol.Message {
	path := req.URIPath()
	switch req.Code {
	case protocol.CodeGET:
		r.mu.RLock()
		v, ok := r.items[path]
		r.mu.RUnlock()
		if !ok {
			return &protocol.Message{Code: protocol.CodeNotFound}
		}
		return &protocol.Message{Code: protocol.CodeContent, Payload: append([]byte(nil), v...)}
	case protocol.CodePUT, protocol.CodePOST:
		r.mu.Lock()
		_, existed := r.items[path]
		r.items[path] = append([]byte(nil), req.Payload...)
		r.mu.Unlock()
		if existed {
			return &protocol.Message{Code: protocol.CodeChanged}
		}
		return &protocol.Message{Code: protocol.CodeCreated}
	case protocol.CodeDELETE:
		r.mu.Lock()
		delete(r.items, path)
		r.mu.Unlock()
		return &protocol.Message{Code: protocol.CodeDeleted}
	default:
		return &protocol.Message{Code: protocol.CodeMethodNotAllowed}
	}
}
