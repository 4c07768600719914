package voice

import (
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/satriahrh/tutur/domain/entities"
)

// ErrVoiceNotFound is returned when selecting a voice that is not listed
var ErrVoiceNotFound = errors.New("voice not found")

// Catalog tracks the locale-filtered voices and the current selection.
// The listed set is replaced wholesale on every refresh.
type Catalog struct {
	mu       sync.RWMutex
	locales  []string
	voices   []entities.Voice
	selected *entities.Voice
	explicit bool
	logger   *zap.Logger
}

// NewCatalog creates a catalog accepting the given locales
func NewCatalog(locales []string, logger *zap.Logger) *Catalog {
	return &Catalog{
		locales: locales,
		logger:  logger,
	}
}

// Refresh replaces the listed voices. An explicit selection survives every refresh;
// otherwise the first listed voice becomes the default.
func (c *Catalog) Refresh(all []entities.Voice) []entities.Voice {
	listed := Filter(all, c.locales)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.voices = listed
	if !c.explicit {
		c.applyDefaultLocked()
	}

	c.logger.Debug("Voice catalog refreshed",
		zap.Int("offered", len(all)),
		zap.Int("listed", len(listed)),
		zap.Bool("explicitSelection", c.explicit))

	return append([]entities.Voice(nil), listed...)
}

// Select makes name the explicit selection
func (c *Catalog) Select(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.voices {
		if c.voices[i].Name == name {
			v := c.voices[i]
			c.selected = &v
			c.explicit = true
			c.logger.Info("Voice selected", zap.String("voice", name), zap.String("locale", v.Locale))
			return nil
		}
	}
	return ErrVoiceNotFound
}

// ResetSelection drops an explicit selection and re-applies the default
func (c *Catalog) ResetSelection() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.explicit = false
	c.applyDefaultLocked()
}

// Selected returns the current selection, if any
func (c *Catalog) Selected() (entities.Voice, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.selected == nil {
		return entities.Voice{}, false
	}
	return *c.selected, true
}

// List returns the listed voices
func (c *Catalog) List() []entities.Voice {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return append([]entities.Voice(nil), c.voices...)
}

// Available reports whether a voice is selected and the listed set is non-empty
func (c *Catalog) Available() (entities.Voice, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.selected == nil || len(c.voices) == 0 {
		return entities.Voice{}, false
	}
	return *c.selected, true
}

func (c *Catalog) applyDefaultLocked() {
	if len(c.voices) == 0 {
		c.selected = nil
		return
	}
	v := c.voices[0]
	c.selected = &v
}

// Filter keeps voices whose locale is accepted, dropping duplicate names (first wins)
func Filter(voices []entities.Voice, locales []string) []entities.Voice {
	accepted := make(map[string]struct{}, len(locales))
	for _, l := range locales {
		accepted[normalizeLocale(l)] = struct{}{}
	}

	seen := make(map[string]struct{}, len(voices))
	out := make([]entities.Voice, 0, len(voices))
	for _, v := range voices {
		if _, ok := accepted[normalizeLocale(v.Locale)]; !ok {
			continue
		}
		if _, dup := seen[v.Name]; dup {
			continue
		}
		seen[v.Name] = struct{}{}
		out = append(out, v)
	}
	return out
}

func normalizeLocale(locale string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(locale), "_", "-"))
}
