package monitor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"bot-alertas/internal/claim"
	"bot-alertas/internal/models"
	"bot-alertas/internal/scraper"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const testURL = "https://swappa.com/listings/apple-iphone-13"

type fakeStore struct {
	mu        sync.Mutex
	watches   []models.Watch
	nextID    int64
	updates   map[int64][]int64
	updateErr error
	listErr   error
	insertErr error
}

func newFakeStore(watches ...models.Watch) *fakeStore {
	return &fakeStore{watches: watches, nextID: 100, updates: map[int64][]int64{}}
}

func (s *fakeStore) InsertWatch(_ context.Context, w *models.Watch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return s.insertErr
	}
	s.nextID++
	w.ID = s.nextID
	s.watches = append(s.watches, *w)
	return nil
}

func (s *fakeStore) ListWatches(context.Context) ([]models.Watch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	return append([]models.Watch(nil), s.watches...), nil
}

func (s *fakeStore) ListWatchesByOwner(_ context.Context, chatID string) ([]models.Watch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Watch
	for _, w := range s.watches {
		if w.OwnerChatID == chatID {
			out = append(out, w)
		}
	}
	return out, nil
}

func (s *fakeStore) DeleteWatch(_ context.Context, externalID, chatID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, w := range s.watches {
		if w.ExternalID == externalID && w.OwnerChatID == chatID {
			s.watches = append(s.watches[:i], s.watches[i+1:]...)
			return 1, nil
		}
	}
	return 0, nil
}

func (s *fakeStore) UpdateLastChecked(_ context.Context, id int64, checkedAt int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates[id] = append(s.updates[id], checkedAt)
	if s.updateErr != nil {
		return s.updateErr
	}
	for i := range s.watches {
		if s.watches[i].ID == id && s.watches[i].LastCheckedAt <= checkedAt {
			s.watches[i].LastCheckedAt = checkedAt
		}
	}
	return nil
}

type fakeRenderer struct {
	mu    sync.Mutex
	pages map[string]string
	hang  map[string]bool
	err   error
	calls int
}

func (r *fakeRenderer) Render(ctx context.Context, url, readySelector string) (string, error) {
	r.mu.Lock()
	r.calls++
	hang := r.hang[url]
	r.mu.Unlock()

	if hang {
		<-ctx.Done()
		return "", ctx.Err()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return "", r.err
	}
	if _, ok := ctx.Deadline(); !ok {
		return "", errors.New("render without deadline")
	}
	html, ok := r.pages[url]
	if !ok {
		return "", fmt.Errorf("no page for %s", url)
	}
	return html, nil
}

type sent struct {
	chatID string
	text   string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sent
	err  error
}

func (n *fakeNotifier) Send(_ context.Context, chatID string, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, sent{chatID: chatID, text: text})
	return nil
}

type offer struct {
	price     string
	condition string
	battery   string
}

func swappaPage(offers ...offer) string {
	var b strings.Builder
	b.WriteString(`<html><head><title>Swappa</title></head><body><h1 itemprop="name">Apple iPhone 13</h1><table>`)
	for i, o := range offers {
		fmt.Fprintf(&b, `<tr itemprop="offers"><td><span itemprop="price" content="%s">$%s</span></td>`, o.price, o.price)
		fmt.Fprintf(&b, `<td><span><meta itemprop="itemCondition" content="UsedCondition">%s</span></td>`, o.condition)
		if o.battery != "" {
			fmt.Fprintf(&b, `<td class="col_featured" tabindex="0">%s</td>`, o.battery)
		}
		fmt.Fprintf(&b, `<td><a href="/listing/L%d" title="Apple iPhone 13 - 128GB, Black">ver</a></td></tr>`, i)
	}
	b.WriteString(`</table></body></html>`)
	return b.String()
}

func dueWatch(id int64, minBattery int) models.Watch {
	return models.Watch{
		ID:          id,
		ExternalID:  fmt.Sprintf("ext%d", id),
		OwnerChatID: "42",
		Criteria: models.WatchCriteria{
			TargetURL:         testURL,
			MaxPrice:          decimal.RequireFromString("700"),
			DesiredCondition:  "Good",
			MinBatteryPercent: minBattery,
			DisplayName:       "Apple iPhone 13",
		},
		CheckIntervalSeconds: 3600,
		LastCheckedAt:        0,
	}
}

var fixedNow = time.Unix(10_000, 0)

func newTestMonitor(t *testing.T, store *fakeStore, r *fakeRenderer, n *fakeNotifier, opts ...Option) *Monitor {
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return New(store, r, n, scraper.NewRegistry(), zaptest.NewLogger(t), opts...)
}

func TestTick_NotifiesOnceOnMatch(t *testing.T) {
	store := newFakeStore(dueWatch(1, 0))
	r := &fakeRenderer{pages: map[string]string{testURL: swappaPage(
		offer{price: "650", condition: "Good"},
		offer{price: "720", condition: "Good"},
	)}}
	n := &fakeNotifier{}

	summary := newTestMonitor(t, store, r, n).Tick(context.Background())

	assert.Equal(t, 1, summary.Due)
	assert.Equal(t, 1, summary.Checked)
	assert.Equal(t, 1, summary.Notified)
	require.Len(t, n.sent, 1)
	assert.Equal(t, "42", n.sent[0].chatID)
	assert.Contains(t, n.sent[0].text, "$650.00")
	assert.NotContains(t, n.sent[0].text, "$720.00")
	assert.Equal(t, []int64{fixedNow.Unix()}, store.updates[1])
}

func TestTick_SilentOnNoMatchAndNoListings(t *testing.T) {
	other := dueWatch(2, 0)
	other.Criteria.TargetURL = testURL + "-empty"
	store := newFakeStore(dueWatch(1, 0), other)
	r := &fakeRenderer{pages: map[string]string{
		testURL:            swappaPage(offer{price: "800", condition: "Good"}),
		testURL + "-empty": `<html><body><p>nothing</p></body></html>`,
	}}
	n := &fakeNotifier{}

	summary := newTestMonitor(t, store, r, n).Tick(context.Background())

	assert.Equal(t, 2, summary.Checked)
	assert.Empty(t, n.sent)
	assert.Len(t, store.updates[1], 1)
	assert.Len(t, store.updates[2], 1)
}

func TestTick_FailureIsCheckpointedButNotReported(t *testing.T) {
	store := newFakeStore(dueWatch(1, 0))
	r := &fakeRenderer{err: errors.New("navigation timeout")}
	n := &fakeNotifier{}

	summary := newTestMonitor(t, store, r, n).Tick(context.Background())

	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.Checked)
	assert.Empty(t, n.sent)
	assert.Equal(t, []int64{fixedNow.Unix()}, store.updates[1])
}

func TestTick_HangingRenderDoesNotBlockOtherWatches(t *testing.T) {
	slow := dueWatch(1, 0)
	slow.Criteria.TargetURL = testURL + "-slow"
	store := newFakeStore(slow, dueWatch(2, 0))
	r := &fakeRenderer{
		pages: map[string]string{testURL: swappaPage(offer{price: "650", condition: "Good"})},
		hang:  map[string]bool{testURL + "-slow": true},
	}
	n := &fakeNotifier{}
	m := newTestMonitor(t, store, r, n, WithWatchTimeout(100*time.Millisecond))

	start := time.Now()
	summary := m.Tick(context.Background())
	elapsed := time.Since(start)

	assert.Less(t, elapsed, 2*time.Second)
	assert.Equal(t, 2, summary.Checked)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.Notified)
	assert.Equal(t, []int64{fixedNow.Unix()}, store.updates[1], "timed-out watch is still checkpointed")
	assert.Equal(t, []int64{fixedNow.Unix()}, store.updates[2])
	require.Len(t, n.sent, 1)
	assert.Contains(t, n.sent[0].text, "$650.00")
}

func TestEvaluate_RenderTimeoutIsExtractionFailure(t *testing.T) {
	slow := dueWatch(1, 0)
	slow.Criteria.TargetURL = testURL + "-slow"
	r := &fakeRenderer{hang: map[string]bool{slow.Criteria.TargetURL: true}}
	m := newTestMonitor(t, newFakeStore(), r, &fakeNotifier{}, WithWatchTimeout(50*time.Millisecond))

	res := m.evaluate(context.Background(), slow)

	assert.Equal(t, models.ExtractionFailed, res.Kind)
	assert.Contains(t, res.Diagnostic, context.DeadlineExceeded.Error())
}

func TestTick_SkipsWatchesNotDue(t *testing.T) {
	w := dueWatch(1, 0)
	w.LastCheckedAt = fixedNow.Unix() - w.CheckIntervalSeconds
	store := newFakeStore(w)
	r := &fakeRenderer{}
	n := &fakeNotifier{}

	summary := newTestMonitor(t, store, r, n).Tick(context.Background())

	assert.Equal(t, 0, summary.Due)
	assert.Equal(t, 0, r.calls)
	assert.Empty(t, store.updates)
}

func TestTick_CheckpointFailureSuppressesNotification(t *testing.T) {
	store := newFakeStore(dueWatch(1, 0), dueWatch(2, 0))
	store.updateErr = errors.New("database is locked")
	r := &fakeRenderer{pages: map[string]string{testURL: swappaPage(offer{price: "650", condition: "Good"})}}
	n := &fakeNotifier{}
	m := newTestMonitor(t, store, r, n)

	summary := m.Tick(context.Background())

	assert.Equal(t, 2, summary.CheckpointErrors)
	assert.Equal(t, 0, summary.Checked)
	assert.Empty(t, n.sent)
	assert.Len(t, store.updates[1], 1)
	assert.Len(t, store.updates[2], 1)

	// a reserva é liberada: o próximo tick tenta de novo
	store.updateErr = nil
	summary = m.Tick(context.Background())
	assert.Equal(t, 2, summary.Checked)
	assert.Len(t, n.sent, 2)
}

func TestTick_ClaimPreventsDoubleCheck(t *testing.T) {
	shared := claim.NewMemoryClaimer()
	page := swappaPage(offer{price: "650", condition: "Good"})

	// duas instâncias veem o mesmo estado persistido
	storeA := newFakeStore(dueWatch(1, 0))
	storeB := newFakeStore(dueWatch(1, 0))
	nA, nB := &fakeNotifier{}, &fakeNotifier{}
	rA := &fakeRenderer{pages: map[string]string{testURL: page}}
	rB := &fakeRenderer{pages: map[string]string{testURL: page}}

	a := newTestMonitor(t, storeA, rA, nA, WithClaimer(shared))
	b := newTestMonitor(t, storeB, rB, nB, WithClaimer(shared))

	sa := a.Tick(context.Background())
	sb := b.Tick(context.Background())

	assert.Equal(t, 1, sa.Notified)
	assert.Equal(t, 1, sb.Skipped)
	assert.Equal(t, 0, rB.calls)
	assert.Len(t, nA.sent, 1)
	assert.Empty(t, nB.sent)
}

func TestTick_NotifierErrorDoesNotStopTick(t *testing.T) {
	store := newFakeStore(dueWatch(1, 0), dueWatch(2, 0))
	r := &fakeRenderer{pages: map[string]string{testURL: swappaPage(offer{price: "650", condition: "Good"})}}
	n := &fakeNotifier{err: errors.New("telegram down")}

	summary := newTestMonitor(t, store, r, n).Tick(context.Background())

	assert.Equal(t, 2, summary.Checked)
	assert.Equal(t, 0, summary.Notified)
}

func TestTick_ListErrorEndsTick(t *testing.T) {
	store := newFakeStore(dueWatch(1, 0))
	store.listErr = errors.New("connection refused")
	r := &fakeRenderer{}

	summary := newTestMonitor(t, store, r, &fakeNotifier{}).Tick(context.Background())

	assert.Equal(t, TickSummary{}, summary)
	assert.Equal(t, 0, r.calls)
}

func TestTick_BatteryFilter(t *testing.T) {
	store := newFakeStore(dueWatch(1, 90))
	r := &fakeRenderer{pages: map[string]string{testURL: swappaPage(
		offer{price: "650", condition: "Good", battery: "85% battery"},
		offer{price: "640", condition: "Good", battery: "95% battery"},
	)}}
	n := &fakeNotifier{}

	newTestMonitor(t, store, r, n).Tick(context.Background())

	require.Len(t, n.sent, 1)
	assert.Contains(t, n.sent[0].text, "$640.00")
	assert.Contains(t, n.sent[0].text, "Bateria: 95%")
	assert.NotContains(t, n.sent[0].text, "$650.00")
}

func TestCreateWatch(t *testing.T) {
	store := newFakeStore()
	r := &fakeRenderer{pages: map[string]string{testURL: swappaPage(offer{price: "650", condition: "Good"})}}
	n := &fakeNotifier{}
	m := newTestMonitor(t, store, r, n)

	w, res, err := m.CreateWatch(context.Background(), "42", CreateRequest{
		URL:       testURL,
		MaxPrice:  decimal.RequireFromString("700"),
		Condition: "Good",
		Frequency: "45m",
	})
	require.NoError(t, err)

	assert.Equal(t, int64(2700), w.CheckIntervalSeconds)
	assert.Equal(t, fixedNow.Unix(), w.LastCheckedAt)
	assert.Equal(t, "Apple iPhone 13", w.Criteria.DisplayName)
	assert.Len(t, w.ExternalID, 12)
	assert.NotZero(t, w.ID)
	assert.True(t, res.HasMatches())
	assert.Empty(t, n.sent, "creation does not notify by itself")
	assert.Empty(t, store.updates, "creation never checkpoints after insert")

	stored, err := m.ListWatches(context.Background(), "42")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, w.ExternalID, stored[0].ExternalID)
}

func TestCreateWatch_RenderFailureUsesDefaultName(t *testing.T) {
	store := newFakeStore()
	r := &fakeRenderer{err: errors.New("browser crashed")}
	m := newTestMonitor(t, store, r, &fakeNotifier{})

	w, res, err := m.CreateWatch(context.Background(), "42", CreateRequest{
		URL:       testURL,
		MaxPrice:  decimal.RequireFromString("700"),
		Condition: "Good",
		Frequency: "2h",
	})
	require.NoError(t, err)
	assert.Equal(t, models.DefaultDisplayName, w.Criteria.DisplayName)
	assert.Equal(t, models.ExtractionFailed, res.Kind)
	assert.Contains(t, res.Diagnostic, "browser crashed")
	assert.Len(t, store.watches, 1)
}

func TestCreateWatch_Validation(t *testing.T) {
	m := newTestMonitor(t, newFakeStore(), &fakeRenderer{}, &fakeNotifier{})
	valid := CreateRequest{
		URL:       testURL,
		MaxPrice:  decimal.RequireFromString("700"),
		Condition: "Good",
		Frequency: "1h",
	}

	tests := []struct {
		name   string
		mutate func(*CreateRequest)
		want   error
	}{
		{"unsupported url", func(r *CreateRequest) { r.URL = "https://example.com/x" }, ErrUnsupportedURL},
		{"zero price", func(r *CreateRequest) { r.MaxPrice = decimal.Zero }, ErrInvalidRequest},
		{"battery above 100", func(r *CreateRequest) { r.MinBattery = 101 }, ErrInvalidRequest},
		{"negative battery", func(r *CreateRequest) { r.MinBattery = -1 }, ErrInvalidRequest},
		{"empty condition", func(r *CreateRequest) { r.Condition = " " }, ErrInvalidRequest},
		{"bad frequency", func(r *CreateRequest) { r.Frequency = "soon" }, models.ErrInvalidInterval},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.mutate(&req)
			_, _, err := m.CreateWatch(context.Background(), "42", req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestDispatch_InteractiveReportsEverything(t *testing.T) {
	w := dueWatch(1, 0)
	n := &fakeNotifier{}
	m := newTestMonitor(t, newFakeStore(), &fakeRenderer{}, n)
	ctx := context.Background()

	for _, res := range []models.MatchResult{
		models.FailedResult("timeout <30s>"),
		models.NoMatchesResult(),
		models.NoListingsResult(),
	} {
		quiet, err := m.Dispatch(ctx, w, res, false)
		require.NoError(t, err)
		assert.False(t, quiet, res.Kind.String())

		loud, err := m.Dispatch(ctx, w, res, true)
		require.NoError(t, err)
		assert.True(t, loud, res.Kind.String())
	}

	require.Len(t, n.sent, 3)
	assert.Contains(t, n.sent[0].text, "<pre>timeout &lt;30s&gt;</pre>")
}

func TestCheckWatch_DoesNotCheckpoint(t *testing.T) {
	store := newFakeStore(dueWatch(1, 0))
	r := &fakeRenderer{pages: map[string]string{testURL: swappaPage(offer{price: "650", condition: "Good"})}}
	n := &fakeNotifier{}
	m := newTestMonitor(t, store, r, n)

	w, res, err := m.CheckWatch(context.Background(), "42", "ext1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), w.ID)
	assert.True(t, res.HasMatches())
	assert.Empty(t, store.updates)
	assert.Empty(t, n.sent)

	_, _, err = m.CheckWatch(context.Background(), "99", "ext1")
	assert.ErrorIs(t, err, ErrWatchNotFound)
}

func TestDeleteWatch(t *testing.T) {
	store := newFakeStore(dueWatch(1, 0))
	m := newTestMonitor(t, store, &fakeRenderer{}, &fakeNotifier{})

	n, err := m.DeleteWatch(context.Background(), "99", "ext1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	n, err = m.DeleteWatch(context.Background(), "42", "ext1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Empty(t, store.watches)
}

func TestStart_RunsFirstTickAndStopsOnCancel(t *testing.T) {
	store := newFakeStore(dueWatch(1, 0))
	r := &fakeRenderer{pages: map[string]string{testURL: swappaPage(offer{price: "650", condition: "Good"})}}
	n := &fakeNotifier{}
	m := newTestMonitor(t, store, r, n, WithSchedule("@every 1h"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Start(ctx) }()

	require.Eventually(t, func() bool {
		n.mu.Lock()
		defer n.mu.Unlock()
		return len(n.sent) == 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
}

func TestStart_InvalidSchedule(t *testing.T) {
	m := newTestMonitor(t, newFakeStore(), &fakeRenderer{}, &fakeNotifier{}, WithSchedule("not a schedule"))
	assert.Error(t, m.Start(context.Background()))
}
