// Command bayz runs the compose server, the playback client, and offline
// rendering and export of composition snapshots.
package main

func main() {
	Execute()
}
