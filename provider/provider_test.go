package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/rotblauer/motiond/broker/brokertest"
	"github.com/rotblauer/motiond/geo/motion"
	"github.com/rotblauer/motiond/params"
	"github.com/rotblauer/motiond/types/fix"
)

var t0 = time.Date(2024, 11, 20, 10, 0, 0, 0, time.UTC)

func collect(t *testing.T, p interface {
	Run(context.Context, func(fix.Fix)) error
}) []fix.Fix {
	t.Helper()
	var got []fix.Fix
	if err := p.Run(context.Background(), func(f fix.Fix) { got = append(got, f) }); err != nil {
		t.Fatal(err)
	}
	return got
}

func TestThrottle(t *testing.T) {
	th := NewThrottle(time.Minute)
	at := func(s int) fix.Fix { return fix.New(0, 0, t0.Add(time.Duration(s)*time.Second)) }

	var passed []int
	for _, s := range []int{0, 10, 59, 60, 90, 121} {
		if th.Pass(at(s)) {
			passed = append(passed, s)
		}
	}
	if want := []int{0, 60, 121}; !slices.Equal(want, passed) {
		t.Errorf("passive: want %v, got %v", want, passed)
	}

	th.SetCadence(motion.CadenceFrequent)
	for _, s := range []int{122, 123} {
		if !th.Pass(at(s)) {
			t.Errorf("frequent should pass %d", s)
		}
	}
	th.SetCadence(motion.CadencePassive)
	if th.Pass(at(124)) {
		t.Error("passive should throttle from the last passed fix")
	}
}

func TestReader(t *testing.T) {
	input := strings.Join([]string{
		`{"lat": 45.5, "lon": -122.6, "time": "2024-11-20T10:00:00Z"}`,
		`{"nonsense": true}`,
		`{"type":"Feature","geometry":{"type":"Point","coordinates":[-122.61,45.51]},"properties":{"Time":"2024-11-20T10:00:01Z"}}`,
		`{"lat": 45.52, "lng": -122.62, "timestamp": 1732096802}`,
	}, "\n")
	cfg := params.DefaultProviderConfig()
	cfg.PassiveInterval = 0
	got := collect(t, NewReader(strings.NewReader(input), cfg))
	if len(got) != 3 {
		t.Fatalf("want 3 fixes, got %d: %v", len(got), got)
	}
	if got[2].Longitude != -122.62 {
		t.Errorf("last fix: %v", got[2])
	}
}

func TestReader_PassiveThrottle(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 10; i++ {
		fmt.Fprintf(&b, `{"lat": 1, "lon": 1, "time": %d}`+"\n", t0.Unix()+int64(i*30))
	}
	cfg := params.DefaultProviderConfig()
	cfg.PassiveInterval = time.Minute
	r := NewReader(strings.NewReader(b.String()), cfg)
	if got := collect(t, r); len(got) != 5 {
		t.Errorf("passive: want 5 of 10 fixes 30s apart, got %d", len(got))
	}

	r = NewReader(strings.NewReader(b.String()), cfg)
	r.SetCadence(context.Background(), motion.CadenceFrequent)
	if got := collect(t, r); len(got) != 10 {
		t.Errorf("frequent: want all 10, got %d", len(got))
	}
}

func TestReader_Empty(t *testing.T) {
	if got := collect(t, NewReader(strings.NewReader(""), nil)); len(got) != 0 {
		t.Errorf("got %v", got)
	}
}

func TestNMEA(t *testing.T) {
	input := strings.Join([]string{
		"garbage",
		"$GPRMC,220516,A,5133.82,N,00042.24,W,173.8,231.8,130694,004.2,W*70",
		"$GPGGA,220517,5133.83,N,00042.25,W,1,08,0.9,545.4,M,46.9,M,,*40",
		"$GPRMC,220518,V,5133.82,N,00042.24,W,173.8,231.8,130694,004.2,W*67",
	}, "\n")
	cfg := params.DefaultProviderConfig()
	cfg.PassiveInterval = 0
	got := collect(t, NewNMEA(strings.NewReader(input), cfg))
	if len(got) < 1 {
		t.Fatalf("want at least the RMC fix, got %v", got)
	}
	want := time.Date(1994, 6, 13, 22, 5, 16, 0, time.UTC)
	if !got[0].ObservedAt.Equal(want) {
		t.Errorf("RMC time: want %v, got %v", want, got[0].ObservedAt)
	}
	for _, f := range got {
		if err := f.Validate(); err != nil {
			t.Error(err)
		}
	}
}

type sliceProvider struct {
	fixes    []fix.Fix
	cadences []motion.Cadence
}

func (p *sliceProvider) Run(ctx context.Context, deliver func(fix.Fix)) error {
	for _, f := range p.fixes {
		deliver(f)
	}
	return nil
}

func (p *sliceProvider) SetCadence(ctx context.Context, c motion.Cadence) error {
	p.cadences = append(p.cadences, c)
	return nil
}

func TestDedupe(t *testing.T) {
	a := fix.New(1, 1, t0)
	b := fix.New(2, 2, t0.Add(time.Second))
	inner := &sliceProvider{fixes: []fix.Fix{a, a, b, a, b}}
	d := NewDedupe(inner, 10)
	if got := collect(t, d); len(got) != 2 {
		t.Errorf("want 2 unique fixes, got %v", got)
	}
	if n := d.(*Dedupe).Dropped(); n != 3 {
		t.Errorf("dropped: %d", n)
	}
	d.SetCadence(context.Background(), motion.CadenceFrequent)
	if len(inner.cadences) != 1 {
		t.Error("cadence not forwarded")
	}
	if NewDedupe(inner, 0) != inner {
		t.Error("size 0 should not wrap")
	}
}

func TestMulti(t *testing.T) {
	p1 := &sliceProvider{fixes: []fix.Fix{fix.New(1, 1, t0)}}
	p2 := &sliceProvider{fixes: []fix.Fix{fix.New(2, 2, t0), fix.New(3, 3, t0)}}
	m := Multi{p1, p2}
	if got := collect(t, m); len(got) != 3 {
		t.Errorf("want 3 fixes, got %v", got)
	}
	m.SetCadence(context.Background(), motion.CadencePassive)
	if len(p1.cadences) != 1 || len(p2.cadences) != 1 {
		t.Error("cadence not fanned out")
	}
}

func TestMQTT(t *testing.T) {
	cfg := params.DefaultMQTTConfig()
	client := brokertest.New()
	p := NewMQTTWithClient(cfg, "rye", client)

	if err := p.SetCadence(context.Background(), motion.CadenceFrequent); err != nil {
		t.Fatal(err)
	}
	pub := client.Published(cfg.CadenceTopic("rye"))
	if len(pub) != 1 || !pub[0].Retained() {
		t.Fatalf("want one retained cadence message, got %v", pub)
	}
	var c motion.Cadence
	if err := json.Unmarshal(pub[0].Payload(), &c); err != nil || c != motion.CadenceFrequent {
		t.Errorf("cadence payload %s: %v", pub[0].Payload(), err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	got := make(chan fix.Fix, 4)
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx, func(f fix.Fix) { got <- f }) }()

	topic := cfg.FixesTopic("rye")
	deadline := time.Now().Add(5 * time.Second)
	for !client.Subscribed(topic) {
		if time.Now().After(deadline) {
			t.Fatal("never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}
	client.Publish(topic, 1, false, `[{"lat":1,"lon":2,"time":1732096800},{"lat":1.1,"lon":2.1,"time":1732096801}]`)
	client.Publish(topic, 1, false, `not json`)

	for i := 0; i < 2; i++ {
		select {
		case f := <-got:
			t.Log(f)
		case <-time.After(5 * time.Second):
			t.Fatal("fix not delivered")
		}
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	if client.Subscribed(topic) {
		t.Error("should unsubscribe on exit")
	}
}

func TestMQTT_BusyTrackerDoesNotBlockClient(t *testing.T) {
	cfg := params.DefaultMQTTConfig()
	client := brokertest.New()
	p := NewMQTTWithClient(cfg, "rye", client)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	release := make(chan struct{})
	got := make(chan fix.Fix, 4)
	done := make(chan error, 1)
	go func() {
		done <- p.Run(ctx, func(f fix.Fix) {
			// Like Tracker.Deliver, hold until the tracker is free.
			<-release
			got <- f
		})
	}()

	topic := cfg.FixesTopic("rye")
	deadline := time.Now().Add(5 * time.Second)
	for !client.Subscribed(topic) {
		if time.Now().After(deadline) {
			t.Fatal("never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	// The in-memory client runs handlers inline, so a blocking handler
	// would block these publishes and the cadence command.
	returned := make(chan error, 1)
	go func() {
		client.Publish(topic, 1, false, `{"lat":1,"lon":2,"time":1732096800}`)
		client.Publish(topic, 1, false, `{"lat":1.1,"lon":2.1,"time":1732096801}`)
		returned <- p.SetCadence(ctx, motion.CadenceFrequent)
	}()
	select {
	case err := <-returned:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(time.Second):
		t.Fatal("publishing blocked on a busy tracker")
	}

	close(release)
	for _, want := range []float64{1, 1.1} {
		select {
		case f := <-got:
			if f.Latitude != want {
				t.Errorf("want lat %v, got %v", want, f.Latitude)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("fix not delivered")
		}
	}
	if p.Dropped() != 0 {
		t.Errorf("dropped %d", p.Dropped())
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatal(err)
	}
}
