// Package effects provides the scoped effect handlers wrapkit uses for its
// side effects, most importantly diagnostic logging.
//
// A handler is installed into a context with a `WithXxxEffectHandler(ctx)` call
// and removed by calling the returned teardown function. Code running under that
// context performs the effect without knowing who handles it:
//
//	ctx, end := log.WithZapEffectHandler(ctx, 16, logger)
//	defer end()
//
//	log.Effect(ctx, log.LogInfo, "retrying", map[string]interface{}{"attempt": 2})
//
// Performing an effect under a context with no handler is not an error for the
// built-in effects: the wrappers in this module must keep working when the
// caller did not ask for diagnostics.
package effects
