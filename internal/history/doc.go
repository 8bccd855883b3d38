/*
Package history keeps a SQLite log of trigger playbacks.

Every trigger that reaches the synchronizer ends with an outcome
(completed, busy, not_found, cancelled, failed). A Recorder registered as
a playlist.Observer turns those into rows:

	store, err := history.Open(ctx, "/database/history.db")
	rec := history.NewRecorder(store, 10000)
	syncer, err := playlist.New(client, cfg, rec)
	...
	rec.Flush()
	store.Close()

The database runs in WAL mode through github.com/mattn/go-sqlite3. Entry
IDs are random UUIDs. Recent and Stats back the /api/history endpoint and
the history gauges exported by the metrics Collector.
*/
package history
