package backend

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"gmscanner/internal/amqp"
	"gmscanner/internal/core"
	"gmscanner/internal/ledger"
	"gmscanner/internal/storage"
)

func newNetworked(t *testing.T) (*NetworkedStrategy, *fakePublisher, *storage.MemoryStore) {
	t.Helper()
	pub := &fakePublisher{}
	store := storage.NewMemoryStore()
	s := NewNetworkedStrategy("GM_01", store, testGroups, pub)
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return s, pub, store
}

func syncWithSession(teams ...string) amqp.SyncFull {
	return amqp.SyncFull{
		Session: &core.Session{ID: "orch-1", Name: "g", Status: core.SessionActive, StartTime: time.Now(), Teams: teams},
	}
}

func TestNetworked_ReadyAfterSync(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newNetworked(t)
	if s.IsReady() {
		t.Fatal("should not be ready before the first sync")
	}
	snap := syncWithSession("001", "002")
	snap.Scores = []core.TeamScore{{TeamID: "001", Score: 30000}}
	snap.Transactions = []core.Transaction{scan("orch-tx-1", "001", "tok1")}
	if err := s.ApplySync(ctx, snap); err != nil {
		t.Fatalf("ApplySync: %v", err)
	}

	if !s.IsReady() {
		t.Error("should be ready after sync")
	}
	if sess := s.Session(); sess == nil || sess.ID != "orch-1" {
		t.Errorf("session = %+v", sess)
	}
	if !s.Ledger().IsDuplicate("tok1") {
		t.Error("synced transaction should claim its token")
	}
	if got := len(s.TeamScores()); got != 2 {
		t.Errorf("local teams = %d, want 2", got)
	}
	scores := s.AuthoritativeScores()
	if len(scores) != 2 || scores[0].Score != 30000 || !scores[0].IsFromBackend {
		t.Errorf("authoritative = %+v", scores)
	}
	if scores[1].IsFromBackend {
		t.Error("team without a push should fall back to the local score")
	}
}

func TestNetworked_SubmitThenConfirm(t *testing.T) {
	ctx := context.Background()
	s, pub, _ := newNetworked(t)
	s.ApplySync(ctx, syncWithSession("001"))

	res, err := s.AddTransaction(ctx, scan("local-1", "001", "tok1"))
	if err != nil {
		t.Fatalf("AddTransaction: %v", err)
	}
	if res.TeamScore.Score != 10000 {
		t.Errorf("provisional score = %d", res.TeamScore.Score)
	}
	if got := pub.types(); !reflect.DeepEqual(got, []string{amqp.CmdTransactionSubmit}) {
		t.Fatalf("published = %v", got)
	}
	submit := pub.sent[0].Payload.(amqp.TransactionSubmit)
	if submit.Transaction.ID != "local-1" || submit.SessionID != "orch-1" {
		t.Errorf("submit payload = %+v", submit)
	}

	confirmed := scan("orch-9", "001", "tok1")
	if err := s.ApplyTransactionNew(ctx, confirmed); err != nil {
		t.Fatalf("ApplyTransactionNew: %v", err)
	}
	txs := s.Transactions()
	if len(txs) != 1 || txs[0].ID != "orch-9" {
		t.Errorf("transactions = %+v", txs)
	}
	if score, _ := s.Ledger().TeamScore("001"); score.Score != 10000 {
		t.Errorf("confirmation changed the score: %d", score.Score)
	}

	// A repeated broadcast is a no-op.
	if err := s.ApplyTransactionNew(ctx, confirmed); err != nil || len(s.Transactions()) != 1 {
		t.Errorf("repeat broadcast: err=%v, txs=%d", err, len(s.Transactions()))
	}
}

func TestNetworked_BroadcastFromOtherStation(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newNetworked(t)
	s.ApplySync(ctx, syncWithSession("001"))

	other := scan("orch-5", "001", "tok2")
	other.DeviceID = "GM_02"
	if err := s.ApplyTransactionNew(ctx, other); err != nil {
		t.Fatalf("ApplyTransactionNew: %v", err)
	}
	if !s.Ledger().IsDuplicate("tok2") {
		t.Error("broadcast should claim the token locally")
	}
	if _, err := s.AddTransaction(ctx, scan("local-2", "002", "tok2")); !errors.Is(err, ledger.ErrDuplicate) {
		t.Errorf("local rescan = %v, want ErrDuplicate", err)
	}
}

func TestNetworked_RejectedScanIsDropped(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newNetworked(t)
	s.ApplySync(ctx, syncWithSession("001"))
	s.AddTransaction(ctx, scan("local-1", "001", "tok1"))

	err := s.ApplyTransactionResult(ctx, amqp.TransactionResult{TransactionID: "local-1", Status: core.StatusDuplicate})
	if err != nil {
		t.Fatalf("ApplyTransactionResult: %v", err)
	}
	if len(s.Transactions()) != 0 {
		t.Error("rejected scan should be removed")
	}
	if !s.Ledger().IsDuplicate("tok1") {
		t.Error("token claimed elsewhere should stay marked")
	}
	if score, _ := s.Ledger().TeamScore("001"); score.Score != 0 {
		t.Errorf("score = %d, want 0", score.Score)
	}

	// Accepted results and unknown ids are ignored.
	if err := s.ApplyTransactionResult(ctx, amqp.TransactionResult{TransactionID: "zzz", Status: core.StatusError}); err != nil {
		t.Errorf("unknown id: %v", err)
	}
}

func TestNetworked_ScorePushAndEvents(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newNetworked(t)
	if s.AuthoritativeScores() != nil {
		t.Fatal("no pushes yet, want nil")
	}

	var got []core.TeamScore
	s.Subscribe(func(e ledger.Event) {
		if u, ok := e.(ledger.TeamScoreUpdated); ok {
			got = append(got, u.TeamScore)
		}
	})
	push := core.TeamScore{
		TeamID: "003",
		Score:  75000,
		AdminAdjustments: []core.AdminAdjustment{
			{Delta: -5000, Reason: "rules", StationID: "GM_02"},
		},
	}
	if err := s.ApplyScorePush(ctx, push); err != nil {
		t.Fatalf("ApplyScorePush: %v", err)
	}
	if len(got) != 1 || !got[0].IsFromBackend || got[0].Score != 75000 {
		t.Errorf("observed = %+v", got)
	}
	scores := s.AuthoritativeScores()
	if len(scores) != 1 || len(scores[0].AdminAdjustments) != 1 {
		t.Errorf("authoritative = %+v", scores)
	}
	if err := s.ApplyScorePush(ctx, core.TeamScore{}); !errors.Is(err, ledger.ErrMissingTeam) {
		t.Errorf("push without team = %v", err)
	}
}

func TestNetworked_DeletedAndReset(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newNetworked(t)
	s.ApplySync(ctx, syncWithSession("001"))
	s.ApplyTransactionNew(ctx, scan("orch-1", "001", "tok1"))
	s.ApplyScorePush(ctx, core.TeamScore{TeamID: "001", Score: 10000})

	if err := s.ApplyTransactionDeleted(ctx, "missing"); err != nil {
		t.Errorf("unknown delete: %v", err)
	}
	if err := s.ApplyTransactionDeleted(ctx, "orch-1"); err != nil {
		t.Fatalf("ApplyTransactionDeleted: %v", err)
	}
	if len(s.Transactions()) != 0 || s.Ledger().IsDuplicate("tok1") {
		t.Error("deleted transaction should be gone and its token released")
	}

	s.ApplyTransactionNew(ctx, scan("orch-2", "001", "tok2"))
	if err := s.ApplyScoresReset(ctx, amqp.ScoresReset{}); err != nil {
		t.Fatalf("ApplyScoresReset: %v", err)
	}
	if len(s.Transactions()) != 0 || s.AuthoritativeScores() != nil {
		t.Error("reset should clear transactions and pushed scores")
	}
	if sess := s.Session(); sess == nil || sess.ID != "orch-1" {
		t.Errorf("reset should keep the session, got %+v", sess)
	}
	if id := s.Ledger().SessionID(); id == nil || *id != "orch-1" {
		t.Errorf("ledger session = %v", id)
	}
	if _, ok := s.Ledger().TeamScore("001"); !ok {
		t.Error("rostered team should survive a reset")
	}
}

func TestNetworked_CommandsPublished(t *testing.T) {
	ctx := context.Background()
	s, pub, _ := newNetworked(t)

	if _, err := s.CreateSession(ctx, "g", []string{"001"}); err != nil {
		t.Fatal(err)
	}
	s.AddTransaction(ctx, scan("l1", "001", "tok1"))
	s.RemoveTransaction(ctx, "l1")
	s.AdjustTeamScore(ctx, "001", 100, "tip")
	s.PauseSession(ctx)
	s.ResumeSession(ctx)
	s.EndSession(ctx)

	want := []string{
		amqp.CmdSessionCreate,
		amqp.CmdTransactionSubmit,
		amqp.CmdTransactionDelete,
		amqp.CmdScoreAdjust,
		amqp.CmdSessionPause,
		amqp.CmdSessionResume,
		amqp.CmdSessionEnd,
	}
	if got := pub.types(); !reflect.DeepEqual(got, want) {
		t.Errorf("published = %v\nwant %v", got, want)
	}
}

func TestNetworked_PublishFailureKeepsLocalState(t *testing.T) {
	ctx := context.Background()
	s, pub, _ := newNetworked(t)
	s.ApplySync(ctx, syncWithSession("001"))
	pub.err = errors.New("broker down")

	if _, err := s.AddTransaction(ctx, scan("l1", "001", "tok1")); err != nil {
		t.Fatalf("AddTransaction: %v", err)
	}
	if len(s.Transactions()) != 1 {
		t.Error("scan should be kept locally")
	}
}

func TestNetworked_CacheSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	s, _, store := newNetworked(t)
	s.ApplySync(ctx, syncWithSession("001"))
	s.AddTransaction(ctx, scan("l1", "001", "tok1"))

	if _, err := store.Get(ctx, "session:networked"); err != nil {
		t.Fatalf("session:networked not written: %v", err)
	}
	restarted := NewNetworkedStrategy("GM_01", store, testGroups, &fakePublisher{})
	if err := restarted.Load(ctx); err != nil {
		t.Fatal(err)
	}
	if len(restarted.Transactions()) != 1 || !restarted.Ledger().IsDuplicate("tok1") {
		t.Error("networked cache not restored")
	}
}

func TestNetworked_EndSessionClearsState(t *testing.T) {
	ctx := context.Background()
	s, pub, _ := newNetworked(t)
	s.ApplySync(ctx, syncWithSession("001"))
	if _, err := s.AddTransaction(ctx, scan("l1", "001", "tok1")); err != nil {
		t.Fatalf("AddTransaction: %v", err)
	}
	s.ApplyScorePush(ctx, core.TeamScore{TeamID: "001", Score: 10000})

	if _, err := s.EndSession(ctx); err != nil {
		t.Fatalf("EndSession: %v", err)
	}
	if len(s.Transactions()) != 0 || s.Ledger().IsDuplicate("tok1") {
		t.Error("end should clear transactions and the duplicate record")
	}
	if len(s.TeamScores()) != 0 || s.AuthoritativeScores() != nil {
		t.Error("end should clear local and pushed scores")
	}
	if got := pub.types(); got[len(got)-1] != amqp.CmdSessionEnd {
		t.Errorf("published = %v", got)
	}

	if _, err := s.EndSession(ctx); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("second end = %v, want ErrInvalidTransition", err)
	}
}

func TestNetworked_SyncEventsCarryBackendFlag(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newNetworked(t)

	var got []core.TeamScore
	s.Subscribe(func(e ledger.Event) {
		if u, ok := e.(ledger.TeamScoreUpdated); ok {
			got = append(got, u.TeamScore)
		}
	})
	snap := syncWithSession("001")
	snap.Scores = []core.TeamScore{{TeamID: "001", Score: 30000}}
	if err := s.ApplySync(ctx, snap); err != nil {
		t.Fatalf("ApplySync: %v", err)
	}
	if len(got) != 1 || !got[0].IsFromBackend || got[0].Score != 30000 {
		t.Errorf("observed = %+v", got)
	}
}

func TestNetworked_AdjustPushedOnlyTeam(t *testing.T) {
	ctx := context.Background()
	s, pub, _ := newNetworked(t)
	s.ApplySync(ctx, syncWithSession("001"))

	if _, err := s.AdjustTeamScore(ctx, "009", 100, "tip"); !errors.Is(err, ledger.ErrTeamNotFound) {
		t.Errorf("unknown team = %v, want ErrTeamNotFound", err)
	}

	s.ApplyScorePush(ctx, core.TeamScore{TeamID: "007", Score: 50000})
	score, err := s.AdjustTeamScore(ctx, "007", -2000, "rules")
	if err != nil {
		t.Fatalf("AdjustTeamScore: %v", err)
	}
	if len(score.AdminAdjustments) != 1 || score.AdminAdjustments[0].Delta != -2000 {
		t.Errorf("score = %+v", score)
	}
	if got := pub.types(); got[len(got)-1] != amqp.CmdScoreAdjust {
		t.Errorf("published = %v", got)
	}
}
