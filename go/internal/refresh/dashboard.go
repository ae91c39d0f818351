package refresh

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/mcdev12/astraea/go/clients/scouting_api_client"
	"github.com/mcdev12/astraea/go/internal/models"
	"github.com/mcdev12/astraea/go/internal/notify"
)

// AdminSource is the part of the API client the admin dashboard reads.
type AdminSource interface {
	GetMatches(ctx context.Context, eventKey string) (*scouting_api_client.MatchList, error)
	GetAssignments(ctx context.Context, eventKey string) (*scouting_api_client.AssignmentList, error)
	GetMatchSummary(ctx context.Context, eventKey string) (*models.MatchSummary, error)
	GetScouters(ctx context.Context) (map[string]models.Scouter, error)
}

// AdminView is everything the match panel of the admin dashboard shows.
type AdminView struct {
	EventKey    string
	Matches     []models.Match
	Assignments []models.Assignment
	Summary     *models.MatchSummary
}

// AdminRenderer draws the admin dashboard panels.
type AdminRenderer interface {
	RenderMatches(view AdminView)
	RenderScouters(scouters map[string]models.Scouter)
}

// AdminDashboard refreshes the admin match and scouter panels.
type AdminDashboard struct {
	source    AdminSource
	tracker   *ChangeTracker
	renderer  AdminRenderer
	publisher notify.Publisher

	mu       sync.Mutex
	eventKey string
}

// NewAdminDashboard creates a dashboard with no event selected.
func NewAdminDashboard(source AdminSource, tracker *ChangeTracker, renderer AdminRenderer, publisher notify.Publisher) *AdminDashboard {
	if publisher == nil {
		publisher = notify.Nop{}
	}
	return &AdminDashboard{
		source:    source,
		tracker:   tracker,
		renderer:  renderer,
		publisher: publisher,
	}
}

// SetEvent switches the dashboard to another event. The next refresh
// always renders.
func (d *AdminDashboard) SetEvent(eventKey string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.eventKey == eventKey {
		return
	}
	d.eventKey = eventKey
	d.tracker.Forget(KeyMatches)
}

// EventKey returns the selected event.
func (d *AdminDashboard) EventKey() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.eventKey
}

// Refresh is a Poller callback.
func (d *AdminDashboard) Refresh(ctx context.Context) error {
	var errs []error
	if err := d.refreshMatches(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := d.refreshScouters(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (d *AdminDashboard) refreshMatches(ctx context.Context) error {
	eventKey := d.EventKey()
	if eventKey == "" {
		return nil
	}

	list, err := d.source.GetMatches(ctx, eventKey)
	if err != nil {
		return err
	}
	if list.Stale {
		log.Warn().Str("event", eventKey).Msg("match list came from offline cache, keeping current view")
		return nil
	}
	if !d.tracker.HasChanged(KeyMatches, list.Matches) {
		return nil
	}

	view := AdminView{EventKey: eventKey, Matches: list.Matches}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		assignments, err := d.source.GetAssignments(gctx, eventKey)
		if err != nil {
			return err
		}
		view.Assignments = assignments.Assignments
		return nil
	})
	g.Go(func() error {
		summary, err := d.source.GetMatchSummary(gctx, eventKey)
		if err != nil {
			return err
		}
		view.Summary = summary
		return nil
	})
	if err := g.Wait(); err != nil {
		// Render on the next poll instead of showing half a view.
		d.tracker.Forget(KeyMatches)
		return err
	}

	d.renderer.RenderMatches(view)
	d.published(ctx, KeyMatches)
	return nil
}

func (d *AdminDashboard) refreshScouters(ctx context.Context) error {
	scouters, err := d.source.GetScouters(ctx)
	if err != nil {
		return err
	}
	if !d.tracker.HasChanged(KeyScouters, scouters) {
		return nil
	}
	d.renderer.RenderScouters(scouters)
	d.published(ctx, KeyScouters)
	return nil
}

func (d *AdminDashboard) published(ctx context.Context, key string) {
	event := notify.NewEvent(notify.EventDataUpdated, 0)
	event.Key = key
	if err := d.publisher.Publish(ctx, event); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("failed to publish data update")
	}
}

// ScouterSource is the part of the API client the scouter dashboard reads.
type ScouterSource interface {
	GetMyAssignments(ctx context.Context) (*scouting_api_client.AssignmentList, error)
}

// ScouterDashboard refreshes a scouter's own assignment list.
type ScouterDashboard struct {
	source  ScouterSource
	tracker *ChangeTracker
	render  func([]models.Assignment)
}

// NewScouterDashboard creates a dashboard that calls render on change.
func NewScouterDashboard(source ScouterSource, tracker *ChangeTracker, render func([]models.Assignment)) *ScouterDashboard {
	return &ScouterDashboard{source: source, tracker: tracker, render: render}
}

// Refresh is a Poller callback.
func (d *ScouterDashboard) Refresh(ctx context.Context) error {
	list, err := d.source.GetMyAssignments(ctx)
	if err != nil {
		return err
	}
	if list.Stale {
		log.Warn().Msg("assignments came from offline cache, keeping current view")
		return nil
	}
	if !d.tracker.HasChanged(KeyMyAssignments, AssignmentFingerprint(list.Assignments)) {
		return nil
	}
	d.render(list.Assignments)
	return nil
}

// Progress summarises a scouter's assignments for one match.
type Progress struct {
	Total     int
	Completed int
	HomeGames int
	Remaining int
}

// ProgressOf counts completed and home game assignments.
func ProgressOf(assignments []models.Assignment) Progress {
	p := Progress{Total: len(assignments)}
	for _, a := range assignments {
		if a.Completed {
			p.Completed++
		}
		if a.IsHomeGame {
			p.HomeGames++
		}
	}
	p.Remaining = p.Total - p.Completed - p.HomeGames
	return p
}

func (p Progress) String() string {
	if p.HomeGames > 0 {
		return fmt.Sprintf("%d/%d completed, %d home games, %d remaining", p.Completed, p.Total, p.HomeGames, p.Remaining)
	}
	return fmt.Sprintf("%d/%d teams completed", p.Completed, p.Total)
}
