// Package blocklist ingests the official site's daily block listings into
// the local exclusion set.
//
// The site partitions its listing by day and by server, behind a
// cookie-plus-anti-forgery-token session and page-at-a-time pagination. The
// pipeline here is deliberately sequential: establish a session, then for
// each unsynced day fetch all pages, classify each record by its block span,
// upsert the batch, and persist the day cursor before moving on. The cursor
// only ever moves forward, so interrupted runs resume at the first
// unfinished day without refetching applied ones.
//
// Nothing in this package deletes characters; a blocked name simply stops
// appearing in the sync work set.
package blocklist
