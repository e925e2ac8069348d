/*
Package status classifies the outcome of copy and filesystem operations.

	+-----------+      +-----------------+
	|  Copier   | ---> |  Status         |
	| (rsync/ln)|      | Flag + Message  |
	+-----------+      +--------+--------+
	                            |
	                   +--------+--------+
	                   |  Mover / caller |
	                   | (retry policy)  |
	                   +-----------------+

🎯 Purpose:
- Tells a caller whether a failed operation may be retried as-is
- Keeps operator-readable messages next to the flag

🚦 Flags:
- OK: operation succeeded, no message required
- RetriableError: transient condition, retry the same operation unchanged
- FatalError: configuration or environment problem, stop and surface to an operator
- Terminated: the operation was cancelled on request, neither success nor environment failure

📝 Design Philosophy:
Callers receive Status values, never raw exit codes or OS errors. A Status is an
immutable value; pass it across goroutines without locking.

🔍 Example:

	st := copier.Copy(ctx, src, dst)
	switch {
	case st.IsOK():
		// mark destination complete
	case st.IsRetriable():
		// schedule a retry
	default:
		// surface st.Message to an operator
	}
*/
package status
