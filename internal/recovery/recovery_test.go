package recovery

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/JagritiYatra/jyaibotmeta-sub001/internal/models"
	"github.com/JagritiYatra/jyaibotmeta-sub001/internal/store"
)

var t0 = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func TestRecoverAllRunsEveryComponent(t *testing.T) {
	rm := NewRecoveryManager(store.NewInMemoryStore(), nil)
	var order []string
	for _, name := range []string{"a", "b", "c"} {
		rm.RegisterRecoverable(name, RecoverFunc(func(ctx context.Context, _ *RecoveryRegistry) error {
			order = append(order, name)
			if name == "b" {
				return errors.New("b broke")
			}
			return nil
		}))
	}
	err := rm.RecoverAll(context.Background())
	if err == nil || !strings.Contains(err.Error(), "b: b broke") {
		t.Fatalf("err = %v, want the b failure", err)
	}
	if strings.Join(order, ",") != "a,b,c" {
		t.Errorf("order = %v, want every component in registration order", order)
	}
}

func TestSessionPurge(t *testing.T) {
	now := t0
	st := store.NewInMemoryStore(store.WithInMemoryClock(func() time.Time { return now }))
	ctx := context.Background()
	if err := st.PutSession(ctx, models.NewSession("919800000001", now, time.Hour), time.Hour); err != nil {
		t.Fatal(err)
	}
	if err := st.PutSession(ctx, models.NewSession("919800000002", now, time.Hour), 3*time.Hour); err != nil {
		t.Fatal(err)
	}
	now = t0.Add(2 * time.Hour)

	rm := NewRecoveryManager(st, func() time.Time { return now })
	rm.RegisterRecoverable("sessions", SessionPurge())
	if err := rm.RecoverAll(ctx); err != nil {
		t.Fatal(err)
	}
	if n, _ := st.PurgeExpiredSessions(ctx, now); n != 0 {
		t.Errorf("%d expired sessions left after recovery", n)
	}
	if _, err := st.GetSession(ctx, "919800000002"); err != nil {
		t.Errorf("live session removed: %v", err)
	}
}

func TestStartupManagerSchedulesMaintenance(t *testing.T) {
	st := store.NewInMemoryStore()
	sender := store.NewOutboxSender(st, func(context.Context, store.OutboxMessage) error { return nil }, time.Second)
	runner := store.NewJobRunner(st, time.Second)
	m := store.NewMaintenance(st, time.Hour)
	m.Register(runner)

	rm := NewStartupManager(st, sender, runner, m)
	if err := rm.RecoverAll(context.Background()); err != nil {
		t.Fatal(err)
	}
	// Running recovery twice must not queue duplicate maintenance runs.
	if err := rm.RecoverAll(context.Background()); err != nil {
		t.Fatal(err)
	}
	jobs, err := st.ClaimDueJobs(context.Background(), time.Now().Add(2*time.Hour), 10)
	if err != nil {
		t.Fatal(err)
	}
	kinds := map[string]int{}
	for _, j := range jobs {
		kinds[j.Kind]++
	}
	if kinds[store.JobKindPurgeSessions] != 1 || kinds[store.JobKindPruneDedup] != 1 {
		t.Errorf("scheduled jobs = %v, want one of each maintenance kind", kinds)
	}
}
