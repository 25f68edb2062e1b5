// Package simulator wraps the external cosi2 binary: the invocation
// contract, the process capability used to run it, and the handling of
// the files it leaves behind (tped outputs and sweep info).
package simulator
