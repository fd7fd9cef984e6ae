package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/harun/relay/pkg/backend"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// ErrNoSession is returned when no session could be established for a participant
var ErrNoSession = errors.New("no session available")

// API is the subset of the backend client the directory needs
type API interface {
	ListSessions(ctx context.Context) ([]backend.Session, error)
	CreateSession(ctx context.Context, title string) (backend.Session, error)
}

// Observer receives directory events (metrics)
type Observer interface {
	ObserveSessionResolved(source string)
	ObserveSessionForced()
	SetActiveSessions(n int)
}

// Source tells where a resolved session id came from
type Source string

const (
	SourceCache   Source = "cache"
	SourceAdopted Source = "adopted"
	SourceCreated Source = "created"
)

// Resolution is the result of ResolveOrCreate
type Resolution struct {
	SessionID string
	Source    Source
}

// Options configures a Directory
type Options struct {
	TitlePrefix string
	Adopt       AdoptPolicy
	Observer    Observer
	Now         func() time.Time
}

// Directory is the process-wide participant to session mapping
type Directory struct {
	api    API
	opts   Options
	logger zerolog.Logger

	mu          sync.RWMutex
	entries     map[string]string
	generations map[string]uint64

	group singleflight.Group
}

// NewDirectory creates an empty directory
func NewDirectory(api API, opts Options, logger zerolog.Logger) *Directory {
	if opts.TitlePrefix == "" {
		opts.TitlePrefix = DefaultTitlePrefix
	}
	if opts.Adopt == "" {
		opts.Adopt = AdoptOwned
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Directory{
		api:         api,
		opts:        opts,
		logger:      logger.With().Str("component", "session").Logger(),
		entries:     make(map[string]string),
		generations: make(map[string]uint64),
	}
}

// ResolveOrCreate returns the participant's session, adopting or creating one on first contact
func (d *Directory) ResolveOrCreate(ctx context.Context, participant string) (Resolution, error) {
	if participant == "" {
		return Resolution{}, fmt.Errorf("%w: participant is required", ErrNoSession)
	}

	if id, ok := d.Lookup(participant); ok {
		d.observeResolved(SourceCache)
		return Resolution{SessionID: id, Source: SourceCache}, nil
	}

	v, err, shared := d.group.Do(participant, func() (interface{}, error) {
		return d.resolve(ctx, participant)
	})
	if err != nil {
		return Resolution{}, err
	}

	res := v.(Resolution)
	if shared {
		d.logger.Debug().
			Str("participant", participant).
			Str("session_id", res.SessionID).
			Msg("Joined in-flight session resolution")
	}

	return res, nil
}

func (d *Directory) resolve(ctx context.Context, participant string) (Resolution, error) {
	if id, ok := d.Lookup(participant); ok {
		d.observeResolved(SourceCache)
		return Resolution{SessionID: id, Source: SourceCache}, nil
	}

	gen := d.generation(participant)

	id, source, err := d.discover(ctx, participant)
	if err != nil {
		d.logger.Error().
			Err(err).
			Str("participant", participant).
			Msg("Failed to resolve session")
		return Resolution{}, fmt.Errorf("%w for participant %s: %w", ErrNoSession, participant, err)
	}

	stored, ok := d.storeIfCurrent(participant, id, gen)
	if !ok {
		// A ForceNew landed while we were talking to the backend; it wins.
		d.logger.Debug().
			Str("participant", participant).
			Str("discarded", id).
			Str("session_id", stored).
			Msg("Discarded stale session resolution")
		d.observeResolved(SourceCache)
		return Resolution{SessionID: stored, Source: SourceCache}, nil
	}

	d.logger.Info().
		Str("participant", participant).
		Str("session_id", id).
		Str("source", string(source)).
		Msg("Session resolved")
	d.observeResolved(source)

	return Resolution{SessionID: id, Source: source}, nil
}

func (d *Directory) discover(ctx context.Context, participant string) (string, Source, error) {
	if d.opts.Adopt != AdoptNever {
		sessions, err := d.api.ListSessions(ctx)
		switch {
		case errors.Is(err, backend.ErrUnavailable):
			return "", "", err
		case err != nil:
			d.logger.Warn().Err(err).Str("participant", participant).Msg("Session list unusable, creating a new session")
		default:
			if s, ok := d.pick(participant, sessions); ok {
				return s.ID, SourceAdopted, nil
			}
		}
	}

	s, err := d.api.CreateSession(ctx, d.Title(participant))
	if err != nil {
		return "", "", err
	}

	return s.ID, SourceCreated, nil
}

func (d *Directory) pick(participant string, sessions []backend.Session) (backend.Session, bool) {
	switch d.opts.Adopt {
	case AdoptFirst:
		// An unusable head entry means a fresh session, not the next entry.
		if len(sessions) > 0 && sessions[0].Usable() {
			return sessions[0], true
		}
	case AdoptOwned:
		for _, s := range sessions {
			if s.Usable() && d.Owns(participant, s.Title) {
				return s, true
			}
		}
	}
	return backend.Session{}, false
}

// ForceNew always creates a fresh session and replaces the participant's entry
func (d *Directory) ForceNew(ctx context.Context, participant string) (string, error) {
	if participant == "" {
		return "", fmt.Errorf("%w: participant is required", ErrNoSession)
	}

	s, err := d.api.CreateSession(ctx, d.ForcedTitle(participant))
	if err != nil {
		d.logger.Error().
			Err(err).
			Str("participant", participant).
			Msg("Failed to create new session")
		return "", fmt.Errorf("%w for participant %s: %w", ErrNoSession, participant, err)
	}

	d.mu.Lock()
	previous := d.entries[participant]
	d.entries[participant] = s.ID
	d.generations[participant]++
	size := len(d.entries)
	d.mu.Unlock()

	d.logger.Info().
		Str("participant", participant).
		Str("session_id", s.ID).
		Str("previous", previous).
		Msg("New session created")

	if d.opts.Observer != nil {
		d.opts.Observer.ObserveSessionForced()
		d.opts.Observer.SetActiveSessions(size)
	}

	return s.ID, nil
}

// Lookup returns the cached session for a participant
func (d *Directory) Lookup(participant string) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	id, ok := d.entries[participant]
	return id, ok
}

// Len returns the number of mapped participants
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.entries)
}

// Title is the title minted for a participant's first session
func (d *Directory) Title(participant string) string {
	return d.opts.TitlePrefix + " " + participant
}

// ForcedTitle is the title minted by ForceNew
func (d *Directory) ForcedTitle(participant string) string {
	return d.Title(participant) + " - " + d.opts.Now().Format(forcedTitleLayout)
}

// Owns reports whether a session title was minted for the participant
func (d *Directory) Owns(participant, title string) bool {
	base := d.Title(participant)
	return title == base || strings.HasPrefix(title, base+" - ")
}

func (d *Directory) generation(participant string) uint64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.generations[participant]
}

// storeIfCurrent writes id unless the participant's generation moved on.
// It returns the entry that is stored after the call.
func (d *Directory) storeIfCurrent(participant, id string, gen uint64) (string, bool) {
	d.mu.Lock()
	if d.generations[participant] != gen {
		current, ok := d.entries[participant]
		d.mu.Unlock()
		if !ok {
			// Forgotten meanwhile; nothing newer to defer to.
			return d.store(participant, id), true
		}
		return current, false
	}
	d.entries[participant] = id
	size := len(d.entries)
	d.mu.Unlock()

	if d.opts.Observer != nil {
		d.opts.Observer.SetActiveSessions(size)
	}
	return id, true
}

func (d *Directory) store(participant, id string) string {
	d.mu.Lock()
	d.entries[participant] = id
	size := len(d.entries)
	d.mu.Unlock()

	if d.opts.Observer != nil {
		d.opts.Observer.SetActiveSessions(size)
	}
	return id
}

func (d *Directory) observeResolved(source Source) {
	if d.opts.Observer != nil {
		d.opts.Observer.ObserveSessionResolved(string(source))
	}
}
