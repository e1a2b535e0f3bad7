// Command oldentide-client is a terminal client for the Oldentide game server.
package main

func main() {
	Execute()
}
