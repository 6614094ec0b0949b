package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/roster/internal/adapters/gateway"
	"github.com/okian/roster/internal/adapters/repository"
	"github.com/okian/roster/internal/adapters/token"
	"github.com/okian/roster/internal/domain/model"
	"github.com/okian/roster/internal/domain/retry"
	"github.com/okian/roster/internal/domain/transform"
	"github.com/okian/roster/pkg/logger"
)

func TestMain(m *testing.M) {
	_ = logger.Init()
	os.Exit(m.Run())
}

// fakeSource serves canned events and participants.
type fakeSource struct {
	events       []model.EventRecord
	participants map[string][]model.ParticipantRecord
	members      map[string]model.ParticipantRecord
	listErr      error
}

func (f *fakeSource) ListEvents(context.Context) ([]model.EventRecord, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.events, nil
}

func (f *fakeSource) ListParticipants(_ context.Context, sourceEventID string) ([]model.ParticipantRecord, error) {
	return f.participants[sourceEventID], nil
}

func (f *fakeSource) MemberDetails(_ context.Context, memberID string) (model.ParticipantRecord, error) {
	if m, ok := f.members[memberID]; ok {
		m.MemberID = memberID
		return m, nil
	}
	return model.ParticipantRecord{}, gateway.ErrNotFound
}

// fakeTarget records writes in memory and can inject failures.
type fakeTarget struct {
	mu     sync.Mutex
	nextID int

	eventCreates       int
	constituentCreates int
	searches           int
	registerCalls      int

	constituents  map[string]string // normalized email -> id
	registrations map[string]bool   // eventID + "|" + constituentID

	failEventName      string // CreateEvent fails validation for this name
	transientRemaining int    // CreateEvent transient failures to inject
	eventCreateErr     error  // overrides all CreateEvent behavior
}

func newFakeTarget() *fakeTarget {
	return &fakeTarget{
		constituents:  make(map[string]string),
		registrations: make(map[string]bool),
	}
}

func (f *fakeTarget) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

func (f *fakeTarget) CreateEvent(_ context.Context, event model.EventRecord) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.eventCreateErr != nil {
		return "", f.eventCreateErr
	}
	if f.transientRemaining > 0 {
		f.transientRemaining--
		return "", fmt.Errorf("upstream hiccup: %w", gateway.ErrTransient)
	}
	if event.Name == f.failEventName {
		return "", fmt.Errorf("rejected: %w", gateway.ErrValidation)
	}
	f.eventCreates++
	return f.id("ev"), nil
}

func (f *fakeTarget) FindConstituent(_ context.Context, identity model.Identity) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searches++
	if id, ok := f.constituents[transform.NormalizeEmail(identity.Email)]; ok {
		return id, nil
	}
	return "", gateway.ErrNotFound
}

func (f *fakeTarget) CreateConstituent(_ context.Context, identity model.Identity) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.constituentCreates++
	id := f.id("con")
	f.constituents[transform.NormalizeEmail(identity.Email)] = id
	return id, nil
}

func (f *fakeTarget) RegisterParticipant(_ context.Context, targetEventID, targetConstituentID, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registerCalls++
	key := targetEventID + "|" + targetConstituentID
	if f.registrations[key] {
		return fmt.Errorf("constituent already exists on event: %w", gateway.ErrAlreadyRegistered)
	}
	f.registrations[key] = true
	return nil
}

func fastPolicy() *retry.Policy {
	return retry.NewPolicy(
		retry.WithInitialDelay(time.Millisecond),
		retry.WithMaxDelay(time.Millisecond),
	)
}

func openStore(t *testing.T) repository.Store {
	t.Helper()
	store, err := repository.Open(filepath.Join(t.TempDir(), "mappings.db"))
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func twoEventFixture() *fakeSource {
	p1 := model.ParticipantRecord{
		MemberID:  "P1",
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     "ada@example.org",
		Status:    "registered",
	}
	p2 := model.ParticipantRecord{
		MemberID:  "P2",
		FirstName: "Alan",
		LastName:  "Turing",
		Email:     "alan@example.org",
		Status:    "declined",
	}
	return &fakeSource{
		events: []model.EventRecord{
			{ID: "E1", Name: "Spring Retreat"},
			{ID: "E2", Name: "Summer Camp"},
		},
		participants: map[string][]model.ParticipantRecord{
			"E1": {p1, p2},
			"E2": {p1},
		},
	}
}

func newService(t *testing.T, store repository.Store, src gateway.Source, tgt gateway.Target) *Service {
	t.Helper()
	svc, err := New(
		WithMappings(store),
		WithSource(src),
		WithTarget(tgt),
		WithRetryPolicy(fastPolicy()),
	)
	if err != nil {
		t.Fatalf("constructing service: %v", err)
	}
	return svc
}

func TestRunSyncsEventsAndParticipants(t *testing.T) {
	convey.Convey("Given two events sharing a participant", t, func() {
		ctx := context.Background()
		store := openStore(t)
		src := twoEventFixture()
		tgt := newFakeTarget()
		svc := newService(t, store, src, tgt)

		convey.Convey("When the pass runs", func() {
			summary, err := svc.Run(ctx)
			convey.So(err, convey.ShouldBeNil)

			convey.Convey("Then both events and both people are created once", func() {
				convey.So(summary.EventsCreated, convey.ShouldEqual, 2)
				convey.So(summary.ConstituentsCreated, convey.ShouldEqual, 2)
				convey.So(summary.Registrations, convey.ShouldEqual, 3)
				convey.So(summary.EventsSkipped, convey.ShouldEqual, 0)
				convey.So(summary.ParticipantsSkipped, convey.ShouldEqual, 0)
				convey.So(tgt.eventCreates, convey.ShouldEqual, 2)
				convey.So(tgt.constituentCreates, convey.ShouldEqual, 2)
			})

			convey.Convey("And the shared participant reuses their mapping", func() {
				convey.So(summary.ConstituentsReused, convey.ShouldEqual, 1)

				events, err := store.Count(ctx, model.KindEvent)
				convey.So(err, convey.ShouldBeNil)
				convey.So(events, convey.ShouldEqual, 2)

				constituents, err := store.Count(ctx, model.KindConstituent)
				convey.So(err, convey.ShouldBeNil)
				convey.So(constituents, convey.ShouldEqual, 2)
			})
		})
	})
}

func TestRunIsIdempotent(t *testing.T) {
	convey.Convey("Given a completed pass", t, func() {
		ctx := context.Background()
		store := openStore(t)
		src := twoEventFixture()
		tgt := newFakeTarget()

		first := newService(t, store, src, tgt)
		_, err := first.Run(ctx)
		convey.So(err, convey.ShouldBeNil)

		convey.Convey("When the same pass runs again", func() {
			second := newService(t, store, src, tgt)
			summary, err := second.Run(ctx)
			convey.So(err, convey.ShouldBeNil)

			convey.Convey("Then nothing is created a second time", func() {
				convey.So(summary.EventsCreated, convey.ShouldEqual, 0)
				convey.So(summary.ConstituentsCreated, convey.ShouldEqual, 0)
				convey.So(summary.Registrations, convey.ShouldEqual, 0)
				convey.So(summary.EventsReused, convey.ShouldEqual, 2)
				convey.So(summary.ConstituentsReused, convey.ShouldEqual, 3)
				convey.So(summary.DuplicateRegistrations, convey.ShouldEqual, 3)
				convey.So(tgt.eventCreates, convey.ShouldEqual, 2)
				convey.So(tgt.constituentCreates, convey.ShouldEqual, 2)
			})
		})
	})
}

func TestRunAdoptsExistingConstituents(t *testing.T) {
	convey.Convey("Given a person who already exists on the target platform", t, func() {
		ctx := context.Background()
		store := openStore(t)
		src := twoEventFixture()
		tgt := newFakeTarget()
		tgt.constituents["ada@example.org"] = "con-preexisting"

		svc := newService(t, store, src, tgt)

		convey.Convey("When the pass runs", func() {
			summary, err := svc.Run(ctx)
			convey.So(err, convey.ShouldBeNil)

			convey.Convey("Then they are adopted instead of duplicated", func() {
				convey.So(summary.ConstituentsAdopted, convey.ShouldEqual, 1)
				convey.So(summary.ConstituentsCreated, convey.ShouldEqual, 1)

				id, err := store.Lookup(ctx, model.KindConstituent, "P1")
				convey.So(err, convey.ShouldBeNil)
				convey.So(id, convey.ShouldEqual, "con-preexisting")
			})
		})
	})
}

func TestRunSkipsFailingRecords(t *testing.T) {
	convey.Convey("Given one event the target platform rejects", t, func() {
		ctx := context.Background()
		store := openStore(t)
		src := twoEventFixture()
		tgt := newFakeTarget()
		tgt.failEventName = "Spring Retreat"

		svc := newService(t, store, src, tgt)

		convey.Convey("When the pass runs", func() {
			summary, err := svc.Run(ctx)
			convey.So(err, convey.ShouldBeNil)

			convey.Convey("Then the other event still syncs fully", func() {
				convey.So(summary.EventsSkipped, convey.ShouldEqual, 1)
				convey.So(summary.EventsCreated, convey.ShouldEqual, 1)
				convey.So(summary.Registrations, convey.ShouldEqual, 1)
			})
		})
	})

	convey.Convey("Given a participant without a usable name", t, func() {
		ctx := context.Background()
		store := openStore(t)
		src := twoEventFixture()
		src.participants["E1"] = append(src.participants["E1"], model.ParticipantRecord{MemberID: "P9"})
		tgt := newFakeTarget()

		svc := newService(t, store, src, tgt)

		convey.Convey("When the pass runs", func() {
			summary, err := svc.Run(ctx)
			convey.So(err, convey.ShouldBeNil)

			convey.Convey("Then only that participant is skipped", func() {
				convey.So(summary.ParticipantsSkipped, convey.ShouldEqual, 1)
				convey.So(summary.Registrations, convey.ShouldEqual, 3)
			})
		})
	})
}

func TestRunRetriesTransientFailures(t *testing.T) {
	convey.Convey("Given a target platform that fails twice before recovering", t, func() {
		ctx := context.Background()
		store := openStore(t)
		src := twoEventFixture()
		tgt := newFakeTarget()
		tgt.transientRemaining = 2

		svc := newService(t, store, src, tgt)

		convey.Convey("When the pass runs", func() {
			summary, err := svc.Run(ctx)
			convey.So(err, convey.ShouldBeNil)

			convey.Convey("Then the writes eventually land", func() {
				convey.So(summary.EventsCreated, convey.ShouldEqual, 2)
				convey.So(summary.EventsSkipped, convey.ShouldEqual, 0)
			})
		})
	})
}

func TestRunAbortsOnDeadCredential(t *testing.T) {
	convey.Convey("Given a target credential that has expired", t, func() {
		ctx := context.Background()
		store := openStore(t)
		src := twoEventFixture()
		tgt := newFakeTarget()
		tgt.eventCreateErr = fmt.Errorf("target credential: %w", token.ErrCredentialExpired)

		svc := newService(t, store, src, tgt)

		convey.Convey("When the pass runs", func() {
			summary, err := svc.Run(ctx)

			convey.Convey("Then it aborts instead of skipping through every record", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(errors.Is(err, ErrRunAborted), convey.ShouldBeTrue)
				convey.So(token.IsFatal(err), convey.ShouldBeTrue)
				convey.So(summary.EventsCreated, convey.ShouldEqual, 0)
				convey.So(tgt.registerCalls, convey.ShouldEqual, 0)
			})
		})
	})
}

func TestRunFailsWhenSourceListingFails(t *testing.T) {
	convey.Convey("Given a source platform that cannot list events", t, func() {
		ctx := context.Background()
		store := openStore(t)
		src := &fakeSource{listErr: fmt.Errorf("listing: %w", gateway.ErrPermission)}
		tgt := newFakeTarget()

		svc := newService(t, store, src, tgt)

		convey.Convey("When the pass runs", func() {
			_, err := svc.Run(ctx)

			convey.Convey("Then the run fails", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(errors.Is(err, gateway.ErrPermission), convey.ShouldBeTrue)
			})
		})
	})
}

func TestRunEnrichesSparseParticipants(t *testing.T) {
	convey.Convey("Given a participant listing with only a member id", t, func() {
		ctx := context.Background()
		store := openStore(t)
		src := &fakeSource{
			events: []model.EventRecord{{ID: "E1", Name: "Spring Retreat"}},
			participants: map[string][]model.ParticipantRecord{
				"E1": {{MemberID: "P1", Status: "registered"}},
			},
			members: map[string]model.ParticipantRecord{
				"P1": {FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.org"},
			},
		}
		tgt := newFakeTarget()

		svc := newService(t, store, src, tgt)

		convey.Convey("When the pass runs", func() {
			summary, err := svc.Run(ctx)
			convey.So(err, convey.ShouldBeNil)

			convey.Convey("Then the profile details back the constituent", func() {
				convey.So(summary.Registrations, convey.ShouldEqual, 1)
				convey.So(summary.ParticipantsSkipped, convey.ShouldEqual, 0)
				convey.So(tgt.constituents["ada@example.org"], convey.ShouldNotBeEmpty)
			})
		})
	})
}

func TestRunSkipsOnMappingConflict(t *testing.T) {
	convey.Convey("Given a mapping that already claims the target id", t, func() {
		ctx := context.Background()
		store := openStore(t)
		// The fake target hands out ev-1 first; claim it for another event.
		convey.So(store.Record(ctx, model.KindEvent, "E-other", "ev-1"), convey.ShouldBeNil)

		src := twoEventFixture()
		tgt := newFakeTarget()
		svc := newService(t, store, src, tgt)

		convey.Convey("When the pass runs", func() {
			summary, err := svc.Run(ctx)
			convey.So(err, convey.ShouldBeNil)

			convey.Convey("Then the conflicting event is skipped and the rest proceed", func() {
				convey.So(summary.EventsSkipped, convey.ShouldEqual, 1)
				convey.So(summary.EventsCreated, convey.ShouldEqual, 1)
			})
		})
	})
}

func TestNewRequiresDependencies(t *testing.T) {
	convey.Convey("Constructing the service without its collaborators fails", t, func() {
		_, err := New()
		convey.So(errors.Is(err, ErrMissingDependency), convey.ShouldBeTrue)

		_, err = New(WithMappings(openStore(t)))
		convey.So(errors.Is(err, ErrMissingDependency), convey.ShouldBeTrue)

		_, err = New(WithMappings(openStore(t)), WithSource(&fakeSource{}))
		convey.So(errors.Is(err, ErrMissingDependency), convey.ShouldBeTrue)
	})
}
