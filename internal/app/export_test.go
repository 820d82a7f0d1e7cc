package service

// CloseQueue closes the reading queue while the service still reports
// started, which is what Submit observes when Stop runs concurrently.
func (s *Service) CloseQueue() { _ = s.queue.Close() }
