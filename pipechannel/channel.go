// Package pipechannel implements the channel abstraction the specification
// treats as external: a pair of byte-stream endpoints per ordered process
// pair, wired up by the launcher (cmd/mimpirun) via dup2'd OS pipes.
//
// A Channel holds the two raw *os.File ends and adds no I/O logic of its
// own: reads and writes on them are plain blocking pipe I/O. The loops that
// read or write a buffer in full and report a closed peer as an error rather
// than a short count are internal/wire's ReadFull and WriteFull.
package pipechannel

import "os"

// Channel is one ordered sender/receiver pipe pair as seen by one endpoint:
// Write sends to the peer, Read receives from the peer. Exactly one process
// owns each end, per the specification's shared-resource model.
type Channel struct {
	Read  *os.File
	Write *os.File
}

// FromFDs constructs a Channel from raw file descriptor numbers, as handed
// down by the launcher via dup2. name is used only for the returned *os.File
// values' diagnostic String() output.
func FromFDs(readFD, writeFD int, name string) Channel {
	return Channel{
		Read:  os.NewFile(uintptr(readFD), name+".r"),
		Write: os.NewFile(uintptr(writeFD), name+".w"),
	}
}

// Close closes both ends of the channel owned by this process. It is safe
// to call Close more than once; subsequent calls return the underlying
// os.File close error, which callers performing teardown may ignore.
func (c Channel) Close() error {
	rerr := c.Read.Close()
	werr := c.Write.Close()
	if werr != nil {
		return werr
	}
	return rerr
}

// CloseWrite closes only the local write end. This is what Finalize uses to
// induce peer-close on the remote read side without waiting for the local
// receiver goroutine (which still owns Read) to finish.
func (c Channel) CloseWrite() error {
	return c.Write.Close()
}
