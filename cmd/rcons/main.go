// Command rcons is a minimal interactive console client for a QAP1
// server, demonstrating eval and low-level command requests. It is a
// small demo, not a full client library.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/cran/rserve-go/internal/qap1"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:6311", "server address")
	flag.Parse()

	conn, err := net.Dial("tcp", *addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "unable to connect: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close()

	hs := make([]byte, 32)
	if _, err := conn.Read(hs); err != nil {
		fmt.Fprintf(os.Stderr, "handshake failed: %v\n", err)
		os.Exit(1)
	}
	if string(hs[:12]) != "Rsrv0102QAP1" {
		fmt.Fprintf(os.Stderr, "unexpected server signature %q\n", hs[:12])
		os.Exit(1)
	}
	fmt.Println("connected. Type \"q\" to quit.")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("Rcli> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())

		switch line {
		case "q", "quit", "exit":
			fmt.Println("ok, you got enough, right? leaving.")
			return
		case "":
			continue
		case "shutdown":
			fmt.Println("performing shutdown.")
			if err := request(conn, qap1.CmdShutdown, nil); err != nil {
				fmt.Fprintf(os.Stderr, "request failed: %v\n", err)
				return
			}
			continue
		}

		if err := evalLine(conn, line); err != nil {
			fmt.Fprintf(os.Stderr, "eval failed: %v\n", err)
			return
		}
	}
}

func request(conn net.Conn, cmd uint32, payload []byte) error {
	if _, err := conn.Write(qap1.EncodeFrame(cmd, payload)); err != nil {
		return err
	}
	resp, _, _, err := qap1.ReadFrame(conn)
	if err != nil {
		return err
	}
	if resp != qap1.RespOK {
		return fmt.Errorf("server returned error code %d", qap1.RespCode(resp))
	}
	return nil
}

func evalLine(conn net.Conn, line string) error {
	req := qap1.EncodeFrame(qap1.CmdEval, qap1.EncodeStringParam(line))
	if _, err := conn.Write(req); err != nil {
		return err
	}
	resp, _, payload, err := qap1.ReadFrame(conn)
	if err != nil {
		return err
	}
	if resp != qap1.RespOK {
		return fmt.Errorf("request failed with error code %d", qap1.RespCode(resp))
	}

	params, err := qap1.IterParams(payload, 0, true)
	if err != nil || len(params) == 0 {
		fmt.Println("result: NULL")
		return nil
	}
	node, err := qap1.DecodeSEXPParam(params[0].Data)
	if err != nil {
		return err
	}
	fmt.Printf("type=%d, result: %s\n", node.Type, describe(node))
	if node.Attr != nil {
		fmt.Printf("attributes: %s\n", describe(node.Attr))
	}
	return nil
}

func describe(n *qap1.Node) string {
	switch n.Type {
	case qap1.XtDouble, qap1.XtArrayDouble:
		return fmt.Sprint(n.Doubles)
	case qap1.XtInt, qap1.XtArrayInt:
		return fmt.Sprint(n.Ints)
	case qap1.XtStr:
		return n.Str
	case qap1.XtArrayStr:
		return fmt.Sprint(n.Strs)
	case qap1.XtNull:
		return "NULL"
	default:
		return fmt.Sprintf("<%v>", n.Type)
	}
}
