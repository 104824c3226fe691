package server

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
)

// writeTimeout bounds writes to SSE clients so a stale connection cannot
// block a broadcast.
const writeTimeout = 2 * time.Second

// sseClient represents one connected event-stream consumer.
type sseClient struct {
	writer  http.ResponseWriter
	flusher http.Flusher
	done    chan struct{}
	id      string
}

// Broadcaster fans reaction events out to connected presentation clients.
type Broadcaster struct {
	mu      sync.RWMutex
	clients map[string]*sseClient
	nextID  int
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{clients: make(map[string]*sseClient)}
}

// addClient registers a new SSE connection.
func (b *Broadcaster) addClient(w http.ResponseWriter) (*sseClient, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming not supported")
	}

	b.mu.Lock()
	b.nextID++
	client := &sseClient{
		id:      fmt.Sprintf("client-%d", b.nextID),
		writer:  w,
		flusher: flusher,
		done:    make(chan struct{}),
	}
	b.clients[client.id] = client
	total := len(b.clients)
	b.mu.Unlock()

	log.Debug().Str("clientId", client.id).Int("totalClients", total).Msg("SSE client connected")
	return client, nil
}

// removeClient unregisters a connection and releases its handler.
func (b *Broadcaster) removeClient(client *sseClient) {
	b.mu.Lock()
	if _, exists := b.clients[client.id]; exists {
		delete(b.clients, client.id)
		close(client.done)
	}
	total := len(b.clients)
	b.mu.Unlock()

	log.Debug().Str("clientId", client.id).Int("totalClients", total).Msg("SSE client disconnected")
}

// ClientCount returns the number of connected clients.
func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// Broadcast sends an event to every connected client. Writes run
// concurrently with a per-client timeout; dead clients are dropped.
func (b *Broadcaster) Broadcast(event string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal SSE data")
		return
	}
	message := fmt.Sprintf("event: %s\ndata: %s\n\n", event, payload)

	b.mu.RLock()
	clients := make([]*sseClient, 0, len(b.clients))
	for _, c := range b.clients {
		clients = append(clients, c)
	}
	b.mu.RUnlock()

	if len(clients) == 0 {
		return
	}

	dead := make(chan *sseClient, len(clients))
	var wg sync.WaitGroup
	for _, client := range clients {
		select {
		case <-client.done:
			continue
		default:
		}
		wg.Add(1)
		go func(c *sseClient) {
			defer wg.Done()
			if !b.writeToClient(c, message) {
				dead <- c
			}
		}(client)
	}
	wg.Wait()
	close(dead)

	for c := range dead {
		b.removeClient(c)
	}
}

// writeToClient performs a single bounded write. Returns false when the
// client should be dropped.
func (b *Broadcaster) writeToClient(client *sseClient, message string) bool {
	done := make(chan bool, 1)
	go func() {
		if _, err := client.writer.Write([]byte(message)); err != nil {
			done <- false
			return
		}
		client.flusher.Flush()
		done <- true
	}()

	select {
	case ok := <-done:
		return ok
	case <-time.After(writeTimeout):
		log.Debug().Str("clientId", client.id).Msg("SSE write timed out")
		return false
	}
}
