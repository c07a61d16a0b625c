// Package service ties a channel, the transport and the point database
// together.
//
// # Session
//
// A Session owns one channel. Run opens it once through a transport.Opener,
// reads length-prefixed wire frames from the stream, applies the decoded
// updates to the database and returns when the stream ends:
//
//	sess, err := service.NewSession(service.SessionConfig{
//		Channel:  cfg,
//		Opener:   transport.NewDispatcher(transport.DispatcherConfig{}),
//		Database: db,
//	})
//	err = sess.Run(ctx)
//
// When the stream is lost every point of the session's point types is
// marked COMM_LOST. Sessions never reopen a lost channel; restarting is the
// caller's decision.
//
// # Manager
//
// Manager runs a set of sessions concurrently and reports their status.
package service
