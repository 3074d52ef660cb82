// Package tailer turns the backend's append-only log files into a live
// Event Bus stream.
//
// # Layout
//
// The backend writes logs under <root>/YYYY-MM/YYYY-MM-DD.N.log. Tailer
// bootstraps against the newest file in the lexicographically latest month
// directory, without backfilling: the cursor starts at end-of-file.
//
// # Following
//
// Three independent mechanisms keep the cursor moving: fsnotify watches on
// the root and active directories, a cron job that rescans for a new month
// directory every ten minutes, and a one-second polling fallback, since
// native file-watch signals are unreliable on some platforms. Any of the
// three may observe a change first; all funnel into the same drain path.
//
// Rotation-in-place (the active file shrinking below the cursor) resets the
// cursor to zero. A newer .log file appearing in the active directory, or a
// newer month directory appearing under root, switches the active file/dir
// and resets the cursor; a month transition additionally emits
// lmstudio_month_transition.
//
// # Parsing
//
// Each line is expected as "[YYYY-MM-DD HH:MM:SS][LEVEL] <message>".
// Malformed lines are dropped. Every well-formed line emits debug_log; a
// subset of message shapes additionally emit one of the lmstudio_* typed
// events (see parse.go for the pattern table).
//
// # Failure handling
//
// I/O errors are logged and retried; the tailer never terminates the
// process. A missing root or active directory leaves it quiescent until a
// valid one reappears.
package tailer
