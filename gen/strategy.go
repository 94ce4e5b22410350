package gen

// Strategy selects which siblings are affected when one child terminates.
type Strategy uint8

const (
	// OneForOne restarts only the child that terminated.
	OneForOne Strategy = iota
	// OneForAll shuts down every other live child (in reverse declaration
	// order) then restarts every child in declaration order.
	OneForAll
	// RestForOne shuts down the children declared after the one that
	// terminated (in reverse order) then restarts from that point forward.
	RestForOne
)

// AutoShutdown controls whether the supervisor itself terminates when a
// significant child is removed.
type AutoShutdown uint8

const (
	// Never means a significant child being removed has no effect on the
	// supervisor's own lifetime.
	Never AutoShutdown = iota
	// AnySignificant terminates the supervisor as soon as any significant
	// child is removed.
	AnySignificant
	// AllSignificant terminates the supervisor once every significant
	// child has been removed.
	AllSignificant
)
