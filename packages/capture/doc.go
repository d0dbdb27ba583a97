// Package capture wraps functions so their real call arguments are
// recorded for later replay in tests.
//
// Wrap returns a function with the identical call contract: same
// signature, same return values, same panics. Before the wrapped function
// runs, its arguments are bound to parameter names, passed through the
// redaction filter, serialized and handed to the capture store. Every
// failure on that path is caught, logged and discarded: a broken capture
// pipeline must never become a production outage.
//
//	process := capture.Func(processOrder,
//		capture.WithParamNames("userID", "order", "password"),
//		capture.WithMode(store.ModeFillAndStop),
//	)
//	result, err := process("u1", order, "hunter2") // captured, then called
package capture
