package log

import (
	"context"
	"log/slog"
)

// SlogAdapter mirrors protocol events onto an slog.Logger. Error events are
// written at Warn, everything else at the configured level (Debug unless
// changed with WithLevel).
type SlogAdapter struct {
	logger *slog.Logger
	level  slog.Level
}

// NewSlogAdapter creates a SlogAdapter logging at Debug.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger, level: slog.LevelDebug}
}

// WithLevel returns a copy logging non-error events at level.
func (a *SlogAdapter) WithLevel(level slog.Level) *SlogAdapter {
	c := *a
	c.level = level
	return &c
}

// Log writes the event.
func (a *SlogAdapter) Log(event Event) {
	level := a.level
	if event.Error != nil && level < slog.LevelWarn {
		level = slog.LevelWarn
	}
	ctx := context.Background()
	if !a.logger.Enabled(ctx, level) {
		return
	}
	a.logger.LogAttrs(ctx, level, "protocol", eventAttrs(event)...)
}

func eventAttrs(e Event) []slog.Attr {
	attrs := make([]slog.Attr, 0, 8)
	attrs = append(attrs,
		slog.String("layer", e.Layer.String()),
		slog.String("category", e.Category.String()))
	if e.Channel != "" {
		attrs = append(attrs, slog.String("channel", e.Channel))
	}
	if e.StreamID != "" {
		attrs = append(attrs, slog.String("stream_id", e.StreamID))
	}

	if f := e.Frame; f != nil {
		return append(attrs,
			slog.String("direction", e.Direction.String()),
			slog.Int("frame_size", f.Size),
			slog.Bool("truncated", f.Truncated))
	}
	if u := e.Update; u != nil {
		attrs = append(attrs,
			slog.String("point_type", u.PointType),
			slog.Uint64("index", uint64(u.Index)),
			slog.Any("value", u.Value),
			slog.Int("quality", int(u.Quality)))
		if u.TimestampMS != nil {
			attrs = append(attrs, slog.Int64("ts_ms", *u.TimestampMS))
		}
		return attrs
	}
	if p := e.Point; p != nil {
		return append(attrs,
			slog.String("point_type", p.PointType),
			slog.Uint64("index", uint64(p.Index)),
			slog.Int("old_quality", int(p.OldQuality)),
			slog.Int("new_quality", int(p.NewQuality)),
			slog.String("reasons", p.Reasons))
	}
	if s := e.StateChange; s != nil {
		attrs = append(attrs,
			slog.String("entity", s.Entity.String()),
			slog.String("transition", s.OldState+"->"+s.NewState))
		if s.Reason != "" {
			attrs = append(attrs, slog.String("reason", s.Reason))
		}
		return attrs
	}
	if x := e.Error; x != nil {
		attrs = append(attrs,
			slog.String("source", x.Layer.String()),
			slog.String("error", x.Message))
		if x.Context != "" {
			attrs = append(attrs, slog.String("context", x.Context))
		}
	}
	return attrs
}

var _ Logger = (*SlogAdapter)(nil)
