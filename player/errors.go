package player

import "errors"

var (
	ErrEngineFailure  = errors.New("playback engine failed")
	ErrNotPlaying     = errors.New("nothing is playing")
	ErrAlreadyPlaying = errors.New("already playing")
	ErrEmptyQueue     = errors.New("queue is empty")

	// ErrAlreadyStopped is returned by Handle.Stop when the track already ended.
	ErrAlreadyStopped = errors.New("track already stopped")

	// ErrNotInVoice is returned when the requesting user has no voice channel.
	ErrNotInVoice = errors.New("user is not in a voice channel")
)
