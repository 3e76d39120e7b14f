// Package scheduler owns the assignment state of a batch run: every file's
// pending chunk queue and the binding of each analyzer worker to a file.
//
// A single Manager goroutine answers worker requests received on one inbound
// channel, which serializes every mutation without locks. Workers stay on
// their bound file while it has chunks left; a worker whose file is drained is
// rebound to the unfinished file with the fewest bound workers. Once every
// chunk has been handed out the manager sends Terminate to each worker.
package scheduler
