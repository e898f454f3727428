// Package repl provides the interactive shell used to drive a Stack
// by hand: bind/listen/connect/send/receive against TCP sockets, in
// the style of the stack's original REPL (bufio.Scanner over stdin,
// tabwriter for tabular listings).
package repl

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"vnet/pkg/addr"
	"vnet/pkg/ipsocket"
	"vnet/pkg/tcp"
)

// Stack is the subset of netstack.Stack the REPL drives.
type Stack interface {
	NewTCPSocket() *tcp.Socket
	NewICMPSocket() *ipsocket.Socket
	NewUDPSocket(localPort uint16) *ipsocket.Socket
	PrimaryAddress() addr.IPv4Address
}

// Run reads commands from stdin until EOF or "q":
//
//	a <port>              listen for TCP on port
//	c <ip> <port>         connect to ip:port
//	s <socket> <data>     send data on a TCP socket
//	r <socket> <bytes>    read everything buffered on a TCP socket (<bytes> must cover it)
//	i                     open a raw ICMP socket
//	u <port>              open a UDP socket bound to port
//	rd <socket>           read one buffered datagram from an ICMP/UDP socket
//	cl <socket>           close socket
//	ls                    list sockets and their state
//	q                     quit
func Run(ctx context.Context, stack Stack) {
	sockets := make(map[int]*tcp.Socket)
	dgramSockets := make(map[int]*ipsocket.Socket)
	nextID := 0

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "q":
			return

		case "a":
			if len(fields) != 2 {
				fmt.Println("usage: a <port>")
				continue
			}
			port, err := strconv.ParseUint(fields[1], 10, 16)
			if err != nil {
				fmt.Println("bad port:", err)
				continue
			}
			s := stack.NewTCPSocket()
			if err := s.Bind(stack.PrimaryAddress(), uint16(port)); err != nil {
				fmt.Println("bind failed:", err)
				continue
			}
			if err := s.Listen(); err != nil {
				fmt.Println("listen failed:", err)
				continue
			}
			sockets[nextID] = s
			fmt.Printf("socket %d listening on %s:%d\n", nextID, stack.PrimaryAddress(), port)
			nextID++

		case "c":
			if len(fields) != 3 {
				fmt.Println("usage: c <ip> <port>")
				continue
			}
			peerIP, err := addr.ParseIPv4(fields[1])
			if err != nil {
				fmt.Println("bad ip:", err)
				continue
			}
			peerPort, err := strconv.ParseUint(fields[2], 10, 16)
			if err != nil {
				fmt.Println("bad port:", err)
				continue
			}
			s := stack.NewTCPSocket()
			if err := s.Connect(ctx, peerIP, uint16(peerPort), true); err != nil {
				fmt.Println("connect failed:", err)
				continue
			}
			sockets[nextID] = s
			fmt.Printf("socket %d connected\n", nextID)
			nextID++

		case "s":
			if len(fields) < 3 {
				fmt.Println("usage: s <socket> <data>")
				continue
			}
			s, ok := socketByID(sockets, fields[1])
			if !ok {
				continue
			}
			payload := []byte(strings.Join(fields[2:], " "))
			n, err := s.Send(payload)
			if err != nil {
				fmt.Println("send failed:", err)
				continue
			}
			fmt.Printf("sent %d bytes\n", n)

		case "r":
			if len(fields) != 3 {
				fmt.Println("usage: r <socket> <bytes>")
				continue
			}
			s, ok := socketByID(sockets, fields[1])
			if !ok {
				continue
			}
			n, err := strconv.Atoi(fields[2])
			if err != nil {
				fmt.Println("bad byte count:", err)
				continue
			}
			buf := make([]byte, n)
			read, err := s.Receive(buf)
			if err != nil {
				fmt.Println("receive failed:", err)
				continue
			}
			fmt.Printf("%q\n", buf[:read])

		case "i":
			if len(fields) != 1 {
				fmt.Println("usage: i")
				continue
			}
			dgramSockets[nextID] = stack.NewICMPSocket()
			fmt.Printf("socket %d is a raw ICMP socket\n", nextID)
			nextID++

		case "u":
			if len(fields) != 2 {
				fmt.Println("usage: u <port>")
				continue
			}
			port, err := strconv.ParseUint(fields[1], 10, 16)
			if err != nil {
				fmt.Println("bad port:", err)
				continue
			}
			dgramSockets[nextID] = stack.NewUDPSocket(uint16(port))
			fmt.Printf("socket %d is a UDP socket bound to port %d\n", nextID, port)
			nextID++

		case "rd":
			if len(fields) != 2 {
				fmt.Println("usage: rd <socket>")
				continue
			}
			s, ok := dgramByID(dgramSockets, fields[1])
			if !ok {
				continue
			}
			d, ok := s.Receive()
			if !ok {
				fmt.Println("no datagram buffered")
				continue
			}
			fmt.Printf("%s:%d: %q\n", d.SrcAddr, d.SrcPort, d.Payload)

		case "cl":
			if len(fields) != 2 {
				fmt.Println("usage: cl <socket>")
				continue
			}
			id, err := strconv.Atoi(fields[1])
			if err != nil {
				fmt.Println("bad socket id:", err)
				continue
			}
			if s, ok := sockets[id]; ok {
				s.Close()
				delete(sockets, id)
				fmt.Printf("socket %d closed\n", id)
				continue
			}
			if _, ok := dgramSockets[id]; ok {
				delete(dgramSockets, id)
				fmt.Printf("socket %d closed\n", id)
				continue
			}
			fmt.Println("no such socket:", id)

		case "ls":
			w := tabwriter.NewWriter(os.Stdout, 1, 1, 3, ' ', 0)
			fmt.Fprintln(w, "ID\tTuple\tState")
			for id, s := range sockets {
				fmt.Fprintf(w, "%d\t%s\t%s\n", id, s.Tuple(), s.State())
			}
			for id, s := range dgramSockets {
				proto := "udp"
				if s.Protocol() == ipsocket.ProtocolICMP {
					proto = "icmp"
				}
				fmt.Fprintf(w, "%d\t%s:%d\t%s\n", id, s.LocalAddress(), s.LocalPort(), proto)
			}
			w.Flush()

		default:
			fmt.Println("unknown command:", fields[0])
		}
	}
}

func socketByID(sockets map[int]*tcp.Socket, field string) (*tcp.Socket, bool) {
	id, err := strconv.Atoi(field)
	if err != nil {
		fmt.Println("bad socket id:", err)
		return nil, false
	}
	s, ok := sockets[id]
	if !ok {
		fmt.Println("no such socket:", id)
	}
	return s, ok
}

func dgramByID(sockets map[int]*ipsocket.Socket, field string) (*ipsocket.Socket, bool) {
	id, err := strconv.Atoi(field)
	if err != nil {
		fmt.Println("bad socket id:", err)
		return nil, false
	}
	s, ok := sockets[id]
	if !ok {
		fmt.Println("no such socket:", id)
	}
	return s, ok
}
