// Package voice simulates team voice chat: who is talking, background noise
// and transient audio faults.
package voice

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"slices"
	"sync"
	"time"

	"ghostlan-sim/internal/logging"
)

// ActivityType is the kind of audio event.
type ActivityType string

const (
	ActivitySpeech          ActivityType = "speech"
	ActivityBackgroundNoise ActivityType = "background_noise"
	ActivityEcho            ActivityType = "echo"
	ActivityFeedback        ActivityType = "feedback"
	ActivitySilence         ActivityType = "silence"
)

// Quality is the perceived voice quality.
type Quality string

const (
	QualityExcellent Quality = "excellent"
	QualityGood      Quality = "good"
	QualityPoor      Quality = "poor"
	QualityBad       Quality = "bad"
)

var qualityLevels = []Quality{QualityExcellent, QualityGood, QualityPoor, QualityBad}

const (
	// SystemSpeaker owns silence and fault events not tied to a player.
	SystemSpeaker     = "SYSTEM"
	backgroundSpeaker = "BACKGROUND"

	speechProbability = 0.1
	noiseProbability  = 0.05
	issueProbability  = 0.02
	qualityDrift      = 0.01
	retention         = 5 * time.Minute
)

var (
	speechTemplates = []string{
		"Enemy spotted at %s!", "Need backup at %s!", "Bomb planted at %s!",
		"Clear! Moving to %s!", "Rush %s!", "Hold position at %s!",
	}
	shortCalls = []string{
		"Good shot!", "Nice play!", "I'm reloading!", "Defusing the bomb!", "Planting the bomb!",
		"Enemy down!", "Team wipe!", "Round won!", "Round lost!", "Good game!", "Well played!", "Let's go!",
	}
	locations  = []string{"A", "B", "mid", "long", "short", "catwalk", "tunnel", "site"}
	noiseTypes = []string{"keyboard", "mouse_clicks", "ambient", "music"}
)

// Activity is one voice event.
type Activity struct {
	SpeakerID string       `json:"speaker_id"`
	Type      ActivityType `json:"type"`
	Duration  float64      `json:"duration"`
	Quality   Quality      `json:"quality,omitempty"`
	Volume    float64      `json:"volume,omitempty"`
	Content   string       `json:"content,omitempty"`
	NoiseType string       `json:"noise_type,omitempty"`
	Message   string       `json:"message,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

// Stats summarizes the last minute of voice traffic.
type Stats struct {
	ActiveSpeakers int     `json:"active_speakers"`
	TotalEvents    int     `json:"total_events"`
	RecentEvents   int     `json:"recent_events"`
	SpeechEvents   int     `json:"speech_events"`
	IssueEvents    int     `json:"issue_events"`
	Quality        Quality `json:"voice_quality"`
}

// Chat is the voice channel shared by all connected players.
type Chat struct {
	mu       sync.Mutex
	speakers []string
	events   []Activity
	quality  Quality

	rand     *rand.Rand
	now      func() time.Time
	interval time.Duration
	log      *slog.Logger
}

// NewChat creates an empty voice channel at good quality.
func NewChat(r *rand.Rand, now func() time.Time, log *slog.Logger) *Chat {
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = slog.Default()
	}
	return &Chat{quality: QualityGood, rand: r, now: now, interval: time.Second, log: log}
}

// AddSpeaker joins a player to the channel.
func (c *Chat) AddSpeaker(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !slices.Contains(c.speakers, id) {
		c.speakers = append(c.speakers, id)
	}
}

// RemoveSpeaker drops a player from the channel.
func (c *Chat) RemoveSpeaker(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.speakers = slices.DeleteFunc(c.speakers, func(s string) bool { return s == id })
}

// Reset clears speakers and history.
func (c *Chat) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.speakers = nil
	c.events = nil
	c.quality = QualityGood
}

// SetQuality forces the channel quality.
func (c *Chat) SetQuality(q Quality) {
	c.mu.Lock()
	c.quality = q
	c.mu.Unlock()
}

// Step runs one monitor pass and returns the events it generated.
func (c *Chat) Step() []Activity {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	var out []Activity
	for _, id := range c.speakers {
		if c.rand.Float64() < speechProbability {
			out = append(out, Activity{
				SpeakerID: id,
				Type:      ActivitySpeech,
				Duration:  c.uniform(0.5, 4),
				Quality:   c.jitterQuality(),
				Volume:    c.uniform(0.3, 1),
				Content:   c.speech(),
				Timestamp: now,
			})
		}
	}
	if c.rand.Float64() < noiseProbability {
		out = append(out, Activity{
			SpeakerID: backgroundSpeaker,
			Type:      ActivityBackgroundNoise,
			Duration:  c.uniform(1, 5),
			Quality:   QualityPoor,
			Volume:    c.uniform(0.1, 0.3),
			NoiseType: noiseTypes[c.rand.Intn(len(noiseTypes))],
			Timestamp: now,
		})
	}
	if c.rand.Float64() < issueProbability {
		t := ActivityEcho
		if c.rand.Intn(2) == 1 {
			t = ActivityFeedback
		}
		out = append(out, Activity{
			SpeakerID: SystemSpeaker,
			Type:      t,
			Duration:  c.uniform(0.5, 2),
			Quality:   QualityBad,
			Volume:    c.uniform(0.2, 0.8),
			Timestamp: now,
		})
		c.log.Warn("voice issue", "type", t)
	}
	if c.rand.Float64() < qualityDrift {
		i := slices.Index(qualityLevels, c.quality)
		if c.rand.Float64() < 0.5 && i > 0 {
			c.quality = qualityLevels[i-1]
		} else if i < len(qualityLevels)-1 {
			c.quality = qualityLevels[i+1]
		}
	}
	c.events = append(c.events, out...)
	cutoff := now.Add(-retention)
	c.events = slices.DeleteFunc(c.events, func(a Activity) bool { return !a.Timestamp.After(cutoff) })
	return out
}

// SimulateActivity samples one activity from a random connected speaker.
func (c *Chat) SimulateActivity() Activity {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if len(c.speakers) == 0 {
		return Activity{SpeakerID: SystemSpeaker, Type: ActivitySilence, Duration: 1, Message: "No active speakers", Timestamp: now}
	}
	id := c.speakers[c.rand.Intn(len(c.speakers))]
	switch c.rand.Intn(3) {
	case 0:
		return Activity{
			SpeakerID: id,
			Type:      ActivitySpeech,
			Duration:  c.uniform(0.5, 3),
			Quality:   c.quality,
			Volume:    c.uniform(0.3, 1),
			Content:   c.speech(),
			Timestamp: now,
		}
	case 1:
		return Activity{
			SpeakerID: id,
			Type:      ActivityBackgroundNoise,
			Duration:  c.uniform(1, 3),
			Volume:    c.uniform(0.1, 0.3),
			NoiseType: noiseTypes[c.rand.Intn(3)],
			Timestamp: now,
		}
	default:
		return Activity{SpeakerID: id, Type: ActivitySilence, Duration: c.uniform(1, 5), Message: "No voice activity", Timestamp: now}
	}
}

// RecentEvents returns the events newer than d.
func (c *Chat) RecentEvents(d time.Duration) []Activity {
	c.mu.Lock()
	defer c.mu.Unlock()
	cutoff := c.now().Add(-d)
	var out []Activity
	for _, e := range c.events {
		if e.Timestamp.After(cutoff) {
			out = append(out, e)
		}
	}
	return out
}

// Stats reports speaker count and last-minute activity.
func (c *Chat) Stats() Stats {
	recent := c.RecentEvents(time.Minute)
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Stats{ActiveSpeakers: len(c.speakers), TotalEvents: len(c.events), RecentEvents: len(recent), Quality: c.quality}
	for _, e := range recent {
		switch e.Type {
		case ActivitySpeech:
			s.SpeechEvents++
		case ActivityEcho, ActivityFeedback:
			s.IssueEvents++
		case ActivityBackgroundNoise, ActivitySilence:
		}
	}
	return s
}

// Run executes Step every second until ctx is done.
func (c *Chat) Run(ctx context.Context) error {
	log := logging.FromContext(ctx)
	log.Info("starting voice monitor")
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.Step()
		case <-ctx.Done():
			log.Info("stopping voice monitor")
			return nil
		}
	}
}

func (c *Chat) speech() string {
	if c.rand.Intn(2) == 0 {
		return shortCalls[c.rand.Intn(len(shortCalls))]
	}
	t := speechTemplates[c.rand.Intn(len(speechTemplates))]
	return fmt.Sprintf(t, locations[c.rand.Intn(len(locations))])
}

// jitterQuality drifts one level from the channel quality 30% of the time.
func (c *Chat) jitterQuality() Quality {
	i := slices.Index(qualityLevels, c.quality)
	switch v := c.rand.Float64(); {
	case v < 0.7:
		return c.quality
	case v < 0.85:
		return qualityLevels[min(i+1, len(qualityLevels)-1)]
	default:
		return qualityLevels[max(i-1, 0)]
	}
}

func (c *Chat) uniform(lo, hi float64) float64 {
	return lo + c.rand.Float64()*(hi-lo)
}
