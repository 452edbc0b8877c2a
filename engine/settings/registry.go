package settings

import (
	"slices"
	"sync"
)

// Registry holds all registered metaboxes in registration order.
type Registry struct {
	mu    sync.RWMutex
	boxes []*Metabox
}

func NewRegistry() *Registry { return &Registry{} }

// RegisterTabMetaboxOptions adds a metabox to a page tab.
// Registering the same page/tab/slug again merges the fields: fields with a known name
// are replaced in place and new ones are appended.
func (r *Registry) RegisterTabMetaboxOptions(box Metabox) error {
	if err := box.validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.boxes {
		if existing.Page != box.Page || existing.Tab != box.Tab || existing.Slug != box.Slug {
			continue
		}
		if box.Title != "" {
			existing.Title = box.Title
		}
		for _, f := range box.Settings {
			i := slices.IndexFunc(existing.Settings, func(e Field) bool { return e.Name == f.Name })
			if i >= 0 {
				existing.Settings[i] = f
			} else {
				existing.Settings = append(existing.Settings, f)
			}
		}
		return nil
	}

	box.Settings = slices.Clone(box.Settings)
	r.boxes = append(r.boxes, &box)
	return nil
}

// Metaboxes returns copies of the metaboxes registered for a page tab.
func (r *Registry) Metaboxes(page, tab string) []Metabox {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []Metabox
	for _, b := range r.boxes {
		if b.Page == page && b.Tab == tab {
			cp := *b
			cp.Settings = slices.Clone(b.Settings)
			result = append(result, cp)
		}
	}
	return result
}

// Fields returns every field registered for a page tab, in display order.
func (r *Registry) Fields(page, tab string) []Field {
	var fields []Field
	for _, b := range r.Metaboxes(page, tab) {
		fields = append(fields, b.Settings...)
	}
	return fields
}
