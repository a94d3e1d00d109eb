package protocols

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"
	"go.urlrecord.dev/core/address"
)

// Registry maps each supported scheme to its Handler instance, and dispatches
// operations to the Handler of an Address' scheme. A Registry is immutable
// after construction and may be shared by concurrent callers.
type Registry struct {
	handlers map[address.Scheme]Handler
}

// NewRegistry returns a Registry of the given scheme => Handler mapping.
func NewRegistry(handlers map[address.Scheme]Handler) *Registry {
	var r = &Registry{handlers: make(map[address.Scheme]Handler, len(handlers))}
	for scheme, h := range handlers {
		r.handlers[scheme] = h
	}
	return r
}

// Handler returns the Handler of the scheme, or an error matching
// ErrUnsupportedScheme if there is none.
func (r *Registry) Handler(scheme address.Scheme) (Handler, error) {
	if h, ok := r.handlers[scheme]; ok {
		return h, nil
	}
	return nil, errors.WithMessagef(ErrUnsupportedScheme, "%q", scheme)
}

// Schemes returns the registered schemes, in sorted order.
func (r *Registry) Schemes() []address.Scheme {
	var out = make([]address.Scheme, 0, len(r.handlers))
	for scheme := range r.handlers {
		out = append(out, scheme)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Fetch the content at the Address.
func (r *Registry) Fetch(ctx context.Context, addr address.Address) (string, bool, error) {
	var h, err = r.Handler(addr.Scheme)
	if err != nil {
		return "", false, err
	}
	var started = time.Now()
	content, ok, err := h.Fetch(ctx, addr)
	r.observe(addr, opFetch, started, err)

	if err == nil {
		payloadBytesTotal.WithLabelValues(string(addr.Scheme), opFetch).Add(float64(len(content)))
	}
	return content, ok, wrap(opFetch, addr, err)
}

// Push the content to the Address.
func (r *Registry) Push(ctx context.Context, addr address.Address, content string) error {
	var h, err = r.Handler(addr.Scheme)
	if err != nil {
		return err
	}
	var started = time.Now()
	err = h.Push(ctx, addr, content)
	r.observe(addr, opPush, started, err)

	if err == nil {
		payloadBytesTotal.WithLabelValues(string(addr.Scheme), opPush).Add(float64(len(content)))
	}
	return wrap(opPush, addr, err)
}

// Delete the resource at the Address.
func (r *Registry) Delete(ctx context.Context, addr address.Address) error {
	return r.do(ctx, addr, opDelete, Handler.Delete)
}

// CreateEmpty creates an empty resource at the Address.
func (r *Registry) CreateEmpty(ctx context.Context, addr address.Address) error {
	return r.do(ctx, addr, opCreateEmpty, Handler.CreateEmpty)
}

// CreateContainer creates a container at the Address, with missing ancestors.
func (r *Registry) CreateContainer(ctx context.Context, addr address.Address) error {
	return r.do(ctx, addr, opCreateContainer, Handler.CreateContainer)
}

// ListContainer enumerates immediate children of the container at the Address.
func (r *Registry) ListContainer(ctx context.Context, addr address.Address) (address.Set, error) {
	var h, err = r.Handler(addr.Scheme)
	if err != nil {
		return nil, err
	}
	var started = time.Now()
	children, err := h.ListContainer(ctx, addr)
	r.observe(addr, opListContainer, started, err)

	if err == nil {
		listItems.WithLabelValues(string(addr.Scheme)).Observe(float64(len(children)))
	}
	return children, wrap(opListContainer, addr, err)
}

func (r *Registry) do(ctx context.Context, addr address.Address, op string,
	fn func(Handler, context.Context, address.Address) error) error {

	var h, err = r.Handler(addr.Scheme)
	if err != nil {
		return err
	}
	var started = time.Now()
	err = fn(h, ctx, addr)
	r.observe(addr, op, started, err)

	return wrap(op, addr, err)
}

func (r *Registry) observe(addr address.Address, op string, started time.Time, err error) {
	var status = "success"
	if err != nil {
		status = "error"
	}
	operationsTotal.WithLabelValues(string(addr.Scheme), op, status).Inc()
	operationDuration.WithLabelValues(string(addr.Scheme), op, status).Observe(time.Since(started).Seconds())

	if err != nil {
		log.WithFields(log.Fields{
			"op":      op,
			"address": addr.String(),
			"err":     err,
		}).Debug("protocol operation failed")
	} else {
		log.WithFields(log.Fields{
			"op":      op,
			"address": addr.String(),
			"elapsed": time.Since(started),
		}).Debug("protocol operation completed")
	}
}

func wrap(op string, addr address.Address, err error) error {
	if err == nil {
		return nil
	}
	return &OpError{Op: op, Address: addr, Err: err}
}

const (
	opFetch           = "fetch"
	opPush            = "push"
	opDelete          = "delete"
	opCreateEmpty     = "create_empty"
	opCreateContainer = "create_container"
	opListContainer   = "list_container"
)

var (
	operationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "urlrecord_protocol_operations_total",
		Help: "Total number of protocol operations",
	}, []string{"scheme", "operation", "status"})

	operationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "urlrecord_protocol_operation_duration_seconds",
		Help:    "Duration of protocol operations in seconds",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to ~32s
	}, []string{"scheme", "operation", "status"})

	payloadBytesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "urlrecord_protocol_payload_bytes_total",
		Help: "Total bytes of payloads fetched from and pushed to addresses",
	}, []string{"scheme", "operation"})

	listItems = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "urlrecord_protocol_list_items_count",
		Help:    "Number of children returned by list_container operations",
		Buckets: prometheus.ExponentialBuckets(1, 2, 15), // 1 to ~32k items
	}, []string{"scheme"})
)
