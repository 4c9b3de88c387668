// Package editcontroller is the non-audio half of the runtime's host
// glue: it reports parameter metadata in the host's normalized terms,
// pushes UI edits into the parameter store, converts values to and
// from display text, and applies persisted snapshots on state load.
package editcontroller

import (
	"io"

	"github.com/blackboxaudio/vstcore/pkg/debug"
	"github.com/blackboxaudio/vstcore/pkg/param"
	"github.com/blackboxaudio/vstcore/pkg/paramid"
	"github.com/blackboxaudio/vstcore/pkg/paramstore"
	"github.com/blackboxaudio/vstcore/pkg/snapshot"
)

// ParameterDescriptor is what the host learns about one parameter:
// the stable numeric id, display titles, step count, the default in
// normalized form, and whether automation may write it. Hidden marks
// framework-reserved parameters that exist for host mapping but do
// not belong in a user-facing parameter list.
type ParameterDescriptor struct {
	ID                paramid.Hash
	Title             string
	ShortTitle        string
	Units             string
	StepCount         int32
	DefaultNormalized float32
	Automatable       bool
	Hidden            bool
}

// Observer is notified when a parameter's value changes through the
// controller. Observers run on the main thread.
type Observer func(id paramid.Hash, value param.Value)

// Controller wires the host's edit surface and the UI to the
// parameter store's main handle.
type Controller struct {
	registry *param.Registry
	main     *paramstore.MainHandle
	log      *debug.Logger

	observers map[int]observerEntry
	nextToken int
}

type observerEntry struct {
	id paramid.Hash
	fn Observer
}

// New builds a Controller over a registry and the store's main-thread
// handle.
func New(registry *param.Registry, main *paramstore.MainHandle) *Controller {
	return &Controller{
		registry:  registry,
		main:      main,
		log:       debug.Default(),
		observers: make(map[int]observerEntry),
	}
}

// Parameters returns a descriptor for every registered parameter, in
// registration order. Framework-reserved parameters are included (the
// host's MPE mapping addresses them) but marked Hidden and never
// automatable.
func (c *Controller) Parameters() []ParameterDescriptor {
	hashes := c.registry.Hashes()
	out := make([]ParameterDescriptor, 0, len(hashes))
	for _, h := range hashes {
		info, _ := c.registry.Info(h)
		units := ""
		if info.Kind == param.KindNumeric {
			units = info.Numeric.Unit
		}
		out = append(out, ParameterDescriptor{
			ID:                h,
			Title:             info.Title,
			ShortTitle:        info.ShortTitle,
			Units:             units,
			StepCount:         info.StepCount(),
			DefaultNormalized: info.Normalize(info.Default()),
			Automatable:       info.Automatable && !param.IsReserved(info.ID),
			Hidden:            param.IsReserved(info.ID),
		})
	}
	return out
}

// GetParamNormalized returns a parameter's current value in [0, 1].
func (c *Controller) GetParamNormalized(id paramid.Hash) (float32, error) {
	info, ok := c.registry.Info(id)
	if !ok {
		return 0, &paramstore.SetError{Kind: paramstore.SetErrNotFound}
	}
	v, _ := c.main.Get(id)
	return info.Normalize(v), nil
}

// SetParamNormalized applies a UI- or host-originated edit. The value
// must lie in [0, 1]; it is converted to the parameter's own scale,
// written to the store, and fanned out to observers.
func (c *Controller) SetParamNormalized(id paramid.Hash, normalized float32) error {
	if normalized < 0 || normalized > 1 {
		return &paramstore.SetError{Kind: paramstore.SetErrOutOfRange}
	}
	info, ok := c.registry.Info(id)
	if !ok {
		return &paramstore.SetError{Kind: paramstore.SetErrNotFound}
	}
	v := info.Denormalize(normalized)
	if err := c.main.Set(id, v); err != nil {
		return err
	}
	c.notify(id, v)
	return nil
}

// ValueToString formats a normalized value for display.
func (c *Controller) ValueToString(id paramid.Hash, normalized float32) (string, error) {
	info, ok := c.registry.Info(id)
	if !ok {
		return "", &paramstore.SetError{Kind: paramstore.SetErrNotFound}
	}
	return info.ValueToString(normalized), nil
}

// StringToValue parses display text into a normalized value.
func (c *Controller) StringToValue(id paramid.Hash, text string) (float32, error) {
	info, ok := c.registry.Info(id)
	if !ok {
		return 0, &paramstore.SetError{Kind: paramstore.SetErrNotFound}
	}
	return info.StringToValue(text)
}

// Subscribe registers an observer for one parameter and returns a
// token for Unsubscribe. A view that subscribes MUST unsubscribe on
// teardown; the controller holds plain references, so a leaked
// subscription keeps the view alive.
func (c *Controller) Subscribe(id paramid.Hash, fn Observer) int {
	token := c.nextToken
	c.nextToken++
	c.observers[token] = observerEntry{id: id, fn: fn}
	return token
}

// Unsubscribe removes a previously registered observer.
func (c *Controller) Unsubscribe(token int) {
	delete(c.observers, token)
}

func (c *Controller) notify(id paramid.Hash, v param.Value) {
	for _, entry := range c.observers {
		if entry.id == id {
			entry.fn(id, v)
		}
	}
}

// SaveState serializes the current user-visible snapshot.
func (c *Controller) SaveState(w io.Writer) error {
	blob, err := snapshot.Encode(c.main.CurrentSnapshot())
	if err != nil {
		return err
	}
	_, err = w.Write(blob)
	return err
}

// LoadState decodes a snapshot blob and applies it to the store,
// notifying every subscribed observer of its parameter's new value.
// A snapshot from a newer version reverts the store to defaults and
// reports the failure; corruption changes nothing.
func (c *Controller) LoadState(blob []byte) error {
	values, err := snapshot.Decode(blob, c.registry)
	if err != nil {
		if _, tooNew := err.(*snapshot.VersionTooNewError); tooNew {
			c.log.Warn("state from a newer version, reverting to defaults")
			defaults := make(map[string]param.Value, len(c.registry.VisibleIDs()))
			for _, id := range c.registry.VisibleIDs() {
				info, _ := c.registry.InfoByID(id)
				defaults[id] = info.Default()
			}
			if applyErr := c.apply(defaults); applyErr != nil {
				return applyErr
			}
		}
		return err
	}
	return c.apply(values)
}

func (c *Controller) apply(values map[string]param.Value) error {
	if err := c.main.ApplySnapshot(values); err != nil {
		return err
	}
	for id, v := range values {
		if h, ok := c.registry.HashOf(id); ok {
			c.notify(h, v)
		}
	}
	return nil
}
