package lifecycle

import "context"

// Component is anything the serve command brings up and tears down as a
// unit: the HTTP server, the capture watcher, the tracing exporter.
type Component interface {
	// Start brings the component up. It must return once the component
	// is ready; long-running work belongs in goroutines the component
	// owns.
	Start(ctx context.Context) error

	// Stop shuts the component down, honoring the context deadline for
	// in-flight work.
	Stop(ctx context.Context) error

	// Name identifies the component in logs.
	Name() string
}
