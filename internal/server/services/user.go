package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/usersvc/internal/common"
	"github.com/dmitrijs2005/usersvc/internal/logging"
	"github.com/dmitrijs2005/usersvc/internal/server/events"
	"github.com/dmitrijs2005/usersvc/internal/server/models"
	"github.com/dmitrijs2005/usersvc/internal/server/notify"
	"github.com/dmitrijs2005/usersvc/internal/server/repositories/repomanager"
)

const (
	WelcomeSubject = "Welcome to User Management API"
	WelcomeText    = "User created successfully."

	SideEffectWelcomeEmail = "welcome_email"
	SideEffectUserCreated  = "user_created_event"
)

// SideEffectOutcome is the result of one best-effort step run after a user
// has been stored. Err is nil on success.
type SideEffectOutcome struct {
	Name string
	Err  error
}

// CreateResult is returned by UserService.Create once the user exists both
// upstream and locally, whatever happened to the side effects.
type CreateResult struct {
	User        *models.User
	SideEffects []SideEffectOutcome
}

// Partial reports whether any side effect failed.
func (r *CreateResult) Partial() bool {
	return len(r.Failed()) > 0
}

// Failed returns the names of failed side effects.
func (r *CreateResult) Failed() []string {
	var names []string
	for _, o := range r.SideEffects {
		if o.Err != nil {
			names = append(names, o.Name)
		}
	}
	return names
}

// UserService creates users in the identity service, keeps a local
// projection and fires the welcome e-mail and the user.created event.
type UserService struct {
	db        *sql.DB
	repos     repomanager.RepositoryManager
	users     UserDirectory
	sink      notify.Sink
	publisher events.Publisher
	log       logging.Logger
}

func NewUserService(db *sql.DB, m repomanager.RepositoryManager, users UserDirectory,
	sink notify.Sink, publisher events.Publisher, log logging.Logger) *UserService {
	return &UserService{
		db:        db,
		repos:     m,
		users:     users,
		sink:      sink,
		publisher: publisher,
		log:       log.With("module", "users"),
	}
}

// Create runs the user-creation flow:
//
//  1. create upstream; a failure aborts with nothing stored,
//  2. store the local projection under the upstream id,
//  3. send the welcome e-mail and publish user.created.
//
// Step 3 never fails the call. Its outcomes are reported in the result and
// CreateResult.Partial tells whether any of them failed.
func (s *UserService) Create(ctx context.Context, nu models.NewUser) (*CreateResult, error) {
	if err := nu.Validate(); err != nil {
		return nil, err
	}

	id, err := s.users.Create(ctx, nu)
	if err != nil {
		return nil, upstreamErr(err)
	}

	user := &models.User{ID: id, UserFields: nu.UserFields}
	if _, err := s.repos.Users(s.db).Create(ctx, user); err != nil {
		s.log.Error(ctx, "user_store_failed", "user_id", id, "error", err)
		return nil, fmt.Errorf("%w: %w", common.ErrStorageFault, err)
	}
	s.log.Info(ctx, "user_created", "user_id", id)

	res := &CreateResult{User: user}
	res.SideEffects = append(res.SideEffects,
		SideEffectOutcome{Name: SideEffectWelcomeEmail, Err: s.sendWelcome(ctx, user)},
		SideEffectOutcome{Name: SideEffectUserCreated, Err: s.publishCreated(ctx, user)},
	)
	for _, o := range res.SideEffects {
		if o.Err != nil {
			s.log.Warn(ctx, "user_side_effect_failed", "user_id", id, "side_effect", o.Name, "error", o.Err)
		}
	}
	return res, nil
}

func (s *UserService) sendWelcome(ctx context.Context, user *models.User) error {
	return s.sink.Send(ctx, user.Email, WelcomeSubject, WelcomeText)
}

func (s *UserService) publishCreated(ctx context.Context, user *models.User) error {
	payload, err := json.Marshal(user)
	if err != nil {
		return err
	}
	accepted, err := s.publisher.Publish(ctx, events.UserCreated, payload)
	if err != nil {
		return err
	}
	if !accepted {
		return fmt.Errorf("%w: queue service refused %s", common.ErrUpstreamUnavailable, events.UserCreated)
	}
	return nil
}

// FindOne returns the user as known to the identity service, or the local
// projection of a user created through this service.
func (s *UserService) FindOne(ctx context.Context, id int64) (*models.User, error) {
	return lookupUser(ctx, s.users, s.repos.Users(s.db), id)
}
