package requestid

import (
	"encoding/hex"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
)

const Version = 1

// Counter is a monotonically increasing sequence safe for concurrent use.
type Counter struct {
	v atomic.Uint64
}

func NewCounter() *Counter {
	return &Counter{}
}

// Increment returns the next value of the sequence, starting from 1.
func (c *Counter) Increment() uint64 {
	return c.v.Add(1)
}

func (c *Counter) Value() uint64 {
	return c.v.Load()
}

func (c *Counter) Reset() {
	c.v.Store(0)
}

var (
	processID = newProcessID()

	// clients numbers clients created within the process.
	clients = NewCounter()
)

func newProcessID() string {
	id := uuid.New()

	return hex.EncodeToString(id[:8])
}

// ProcessID returns the random identifier of the current process.
func ProcessID() string {
	return processID
}

// Clients returns the process-scoped counter of clients.
func Clients() *Counter {
	return clients
}

// ID identifies one attempt of a logical request:
// version.process.client.channel.request.attempt
type ID struct {
	Process string
	Client  uint64
	Channel uint64
	Request uint64
	Attempt uint64
}

func (id ID) String() string {
	var b strings.Builder
	b.WriteString(strconv.Itoa(Version))
	b.WriteByte('.')
	b.WriteString(id.Process)
	for _, v := range []uint64{id.Client, id.Channel, id.Request, id.Attempt} {
		b.WriteByte('.')
		b.WriteString(strconv.FormatUint(v, 10))
	}

	return b.String()
}

// WithAttempt returns the identifier of another attempt of the same logical request.
func (id ID) WithAttempt(attempt uint64) ID {
	id.Attempt = attempt

	return id
}

type Generator struct {
	process  string
	client   uint64
	channel  uint64
	requests *Counter
}

type option func(g *Generator)

func WithProcessID(process string) option {
	return func(g *Generator) {
		g.process = process
	}
}

// WithClients sets the counter the client number is taken from.
func WithClients(c *Counter) option {
	return func(g *Generator) {
		g.client = c.Increment()
	}
}

func WithChannelID(channel uint64) option {
	return func(g *Generator) {
		g.channel = channel
	}
}

// WithRequests sets the per-client counter of logical requests.
func WithRequests(c *Counter) option {
	return func(g *Generator) {
		g.requests = c
	}
}

func New(opts ...option) *Generator {
	g := &Generator{
		process:  processID,
		channel:  1,
		requests: NewCounter(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	if g.client == 0 {
		g.client = clients.Increment()
	}

	return g
}

// Next returns the identifier of the first attempt of a new logical request.
func (g *Generator) Next() ID {
	return ID{
		Process: g.process,
		Client:  g.client,
		Channel: g.channel,
		Request: g.requests.Increment(),
		Attempt: 1,
	}
}

func (g *Generator) ClientID() uint64 {
	return g.client
}
