// Package livequery re-delivers query results to subscribers whenever the
// store changes.
//
// A Hub observes one store. Each Subscription holds a Query; after every
// committed write the hub asks each query whether the change could affect its
// result and, if so, re-runs it and hands the complete new result to the
// subscriber. There is no diffing: consumers always receive the full,
// authoritatively ordered set.
//
// Delivery is synchronous with the write that caused it. By the time a
// Put or UpdateStatus returns, every affected subscriber has been called with
// a result that includes that write, and deliveries follow commit order.
//
// Subscriptions are scoped resources. Release them with Unsubscribe or by
// cancelling the context given to Subscribe; after release no further
// callback is made. Callbacks must not write to the store and must not call
// Unsubscribe on their own subscription (cancel the context instead).
package livequery
