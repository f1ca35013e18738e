// Package events fans out state-change notifications from the session,
// console and chat machines to whatever is rendering them.
//
// Publishing never blocks: a subscriber whose buffer is full misses events.
// Views treat an event as a hint to re-read the machine's snapshot, so a
// dropped event is recovered by the next one.
package events
