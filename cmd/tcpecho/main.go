// Command tcpecho is a small demonstration of the nettcp engine: run
// with -listen to serve a byte-echoing listener, or with -dial to send
// it one line and print the echoed reply.
package main

import (
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"time"

	"github.com/helixnet/tcpengine/internal/nettcp"
)

func main() {
	listenAddr := flag.String("listen", "", "address to listen on, e.g. 127.0.0.1:9000")
	dialAddr := flag.String("dial", "", "address to connect to, e.g. 127.0.0.1:9000")
	flag.Parse()

	switch {
	case *listenAddr != "":
		runServer(*listenAddr)
	case *dialAddr != "":
		runClient(*dialAddr)
	default:
		fmt.Fprintln(os.Stderr, "usage: tcpecho -listen addr | -dial addr")
		os.Exit(2)
	}
}

func runServer(addr string) {
	local, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		log.Fatalf("resolve: %v", err)
	}

	ln, err := nettcp.Listen(local, func(peer *net.TCPAddr, pending *nettcp.PendingAccept) {
		log.Printf("incoming connection from %v", peer)
		conn, err := pending.Accept(nettcp.Handlers{})
		if err != nil {
			log.Printf("accept: %v", err)
			return
		}
		conn.SetHandlers(nettcp.Handlers{
			OnRecv: func(buf *nettcp.Buffer) {
				if err := conn.Send(buf.Bytes()); err != nil {
					log.Printf("echo send: %v", err)
				}
			},
			OnClosed: func(err error) {
				log.Printf("connection from %v closed: %v", peer, err)
				conn.Destroy()
			},
		})
	})
	if err != nil {
		log.Fatalf("listen: %v", err)
	}
	defer ln.Destroy()

	local, _ = ln.LocalAddr()
	log.Printf("listening on %v", local)
	select {}
}

// runClient connects, sends one line, prints whatever echoes back, then
// exits. Apart from Connect itself and the final Destroy, every call
// into conn happens from inside a handler that the engine's own poller
// goroutine invokes — a
// second goroutine calling conn.Send directly (e.g. to forward stdin
// input live) would race with that goroutine, since Conn is documented
// as usable from exactly one goroutine at a time.
func runClient(addr string) {
	done := make(chan struct{})
	var conn *nettcp.Conn

	conn, err := nettcp.Allocate(addr, nettcp.Handlers{
		OnEstablished: func() {
			log.Printf("connected to %s", addr)
			if err := conn.Send([]byte("hello from tcpecho\n")); err != nil {
				log.Printf("send: %v", err)
			}
		},
		OnRecv: func(buf *nettcp.Buffer) {
			os.Stdout.Write(buf.Bytes())
			close(done)
		},
		OnClosed: func(err error) {
			log.Printf("connection closed: %v", err)
		},
	})
	if err != nil {
		log.Fatalf("allocate: %v", err)
	}
	if err := conn.Connect(addr); err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer conn.Destroy()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		log.Printf("timed out waiting for echo")
	}
}
