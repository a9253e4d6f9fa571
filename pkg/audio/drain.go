package audio

// Drain consumes ch until it closes, discarding every value. Abandoning a
// [Source] without draining its Frames channel would leave the producer
// goroutine blocked forever.
func Drain[T any](ch <-chan T) {
	for range ch {
	}
}
