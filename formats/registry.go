package formats

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"
)

var (
	// ErrUnsupportedFormat is returned when no Codec is registered under a
	// requested format name.
	ErrUnsupportedFormat = errors.New("unsupported format")
	// ErrNoMatchingFormat is returned by DecodeAny when every Codec fails.
	ErrNoMatchingFormat = errors.New("no matching format")
)

// DefaultNames maps format names, such as file extensions, to Codec names.
var DefaultNames = map[string]string{
	"toml": "toml",
	"json": "json",
	"yaml": "yaml",
	"yml":  "yaml",
}

// Registry resolves Codecs by format name, and probes them in registration order.
type Registry struct {
	codecs []Codec
	names  map[string]Codec
}

// NewRegistry returns a Registry of |codecs|, probed in the given order.
// |names| maps each accepted format name to the Name of a Codec.
// Codecs are resolved only through |names|.
func NewRegistry(names map[string]string, codecs ...Codec) (*Registry, error) {
	var byName = make(map[string]Codec, len(codecs))
	for _, c := range codecs {
		if _, ok := byName[c.Name()]; ok {
			return nil, fmt.Errorf("duplicate codec %q", c.Name())
		}
		byName[c.Name()] = c
	}

	var r = &Registry{codecs: codecs, names: make(map[string]Codec, len(names))}
	for name, codec := range names {
		if c, ok := byName[codec]; !ok {
			return nil, fmt.Errorf("format name %q maps to unknown codec %q", name, codec)
		} else {
			r.names[name] = c
		}
	}
	return r, nil
}

// DefaultRegistry returns a Registry of TOML, JSON, and YAML (in that probe
// order) under DefaultNames.
func DefaultRegistry() *Registry {
	var r, err = NewRegistry(DefaultNames, TOML, JSON, YAML)
	if err != nil {
		panic(err)
	}
	return r
}

// Codec returns the Codec of the format |name|.
func (r *Registry) Codec(name string) (Codec, error) {
	if c, ok := r.names[name]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, name)
}

// Codecs returns registered Codecs in probe order.
func (r *Registry) Codecs() []Codec { return append([]Codec(nil), r.codecs...) }

// DecodeAs decodes |data| as a T using the Codec of format |name|.
func DecodeAs[T any](r *Registry, data string, name string) (T, error) {
	var out T

	var c, err = r.Codec(name)
	if err != nil {
		return out, err
	}
	err = c.Decode(data, &out)
	return out, err
}

// EncodeAs encodes |record| using the Codec of format |name|.
func EncodeAs(r *Registry, record interface{}, name string) (string, error) {
	var c, err = r.Codec(name)
	if err != nil {
		return "", err
	}
	return c.Encode(record)
}

// DecodeAny decodes |data| as a T by trying each registered Codec in order,
// returning the first success. Each attempt decodes into a fresh T. If every
// Codec fails, ErrNoMatchingFormat is returned.
func DecodeAny[T any](r *Registry, data string) (T, error) {
	for _, c := range r.codecs {
		var out T

		if err := c.Decode(data, &out); err != nil {
			probeTotal.WithLabelValues(c.Name(), "mismatch").Inc()

			log.WithFields(log.Fields{
				"format": c.Name(),
				"err":    err,
			}).Debug("format probe did not match")
			continue
		}
		probeTotal.WithLabelValues(c.Name(), "match").Inc()
		return out, nil
	}
	var zero T
	return zero, fmt.Errorf("%w (tried %d formats)", ErrNoMatchingFormat, len(r.codecs))
}

var probeTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "urlrecord_format_probe_total",
	Help: "counter of format probe attempts, by format and result",
}, []string{"format", "result"})
