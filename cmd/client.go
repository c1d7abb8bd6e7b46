package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/wtfashwin/Quiz-App/models"
	"github.com/wtfashwin/Quiz-App/network"
)

var (
	clientAddr   string
	clientToken  string
	clientPlayer string
)

var clientCmd = &cobra.Command{
	Use:   "client",
	Short: "Interactive websocket client for manual play",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runClient(clientAddr)
	},
}

func init() {
	clientCmd.Flags().StringVar(&clientAddr, "addr", "localhost:3001", "server host:port")
	clientCmd.Flags().StringVar(&clientToken, "token", "", "identity token sent on connect")
	clientCmd.Flags().StringVar(&clientPlayer, "player", "", "player id used when no token is given")
}

const clientHelp = `commands:
  rooms                         list rooms
  create <name>                 create a room and host it
  join <room> [name]            join a room as a player
  room <room>                   show room state
  start <room>                  start the game (host only)
  answer <room> <q> <option>    answer question q
  say <room> <text>             chat
  leave                         leave the current room
  quit`

// send 把事件封装成 JSON 信封发出
func send(c *websocket.Conn, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return c.WriteJSON(network.Inbound{Event: event, Data: data})
}

func runClient(addr string) error {
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	u := url.URL{Scheme: "ws", Host: addr, Path: "/ws"}
	log.Printf("Connecting to %s", u.String())

	c, _, err := websocket.DefaultDialer.Dial(u.String(), http.Header{})
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}
	defer c.Close()

	done := make(chan struct{})

	// Read loop
	go func() {
		defer close(done)
		for {
			var out network.Outbound
			if err := c.ReadJSON(&out); err != nil {
				log.Println("Read error:", err)
				return
			}
			log.Printf("<- %s %s", out.Event, string(out.Data))
		}
	}()

	if clientToken != "" {
		if err := send(c, network.EventAuthenticate, network.AuthenticateRequest{Token: clientToken}); err != nil {
			return err
		}
	} else if clientPlayer != "" {
		user := &network.UserPayload{ID: clientPlayer, Name: clientPlayer}
		if err := send(c, network.EventAuthenticate, network.AuthenticateRequest{User: user}); err != nil {
			return err
		}
	}

	fmt.Println(clientHelp)

	lines := make(chan string)
	go func() {
		reader := bufio.NewReader(os.Stdin)
		for {
			text, err := reader.ReadString('\n')
			if err != nil {
				close(lines)
				return
			}
			lines <- strings.TrimSpace(text)
		}
	}()

	for {
		select {
		case <-done:
			return nil
		case <-interrupt:
			log.Println("Interrupt received, closing connection.")
			closeClient(c, done)
			return nil
		case text, ok := <-lines:
			if !ok || text == "quit" {
				closeClient(c, done)
				return nil
			}
			if text == "" {
				continue
			}
			if err := clientCommand(c, strings.Fields(text)); err != nil {
				log.Println("Error:", err)
			}
		}
	}
}

func closeClient(c *websocket.Conn, done <-chan struct{}) {
	err := c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err != nil {
		log.Println("Write close error:", err)
	}
	select {
	case <-done:
	case <-time.After(time.Second):
	}
}

func clientCommand(c *websocket.Conn, f []string) error {
	arg := func(i int) string {
		if i < len(f) {
			return f[i]
		}
		return ""
	}

	switch f[0] {
	case "rooms":
		return send(c, network.EventGetRooms, struct{}{})
	case "create":
		return send(c, network.EventCreateRoom, network.CreateRoomRequest{
			Name:   strings.Join(f[1:], " "),
			HostID: clientPlayer,
		})
	case "join":
		name := arg(2)
		if name == "" {
			name = clientPlayer
		}
		return send(c, network.EventJoinRoom, network.JoinRoomRequest{
			RoomID: arg(1),
			Player: models.PlayerInfo{ID: clientPlayer, Name: name},
		})
	case "room":
		return send(c, network.EventGetRoom, network.GetRoomRequest{RoomID: arg(1)})
	case "start":
		return send(c, network.EventStartGame, network.StartGameRequest{RoomID: arg(1), RequesterID: clientPlayer})
	case "answer":
		q, err := strconv.Atoi(arg(2))
		if err != nil {
			return fmt.Errorf("bad question index %q", arg(2))
		}
		a, err := strconv.Atoi(arg(3))
		if err != nil {
			return fmt.Errorf("bad option %q", arg(3))
		}
		return send(c, network.EventSubmitAnswer, network.SubmitAnswerRequest{
			RoomID:        arg(1),
			PlayerID:      clientPlayer,
			QuestionIndex: &q,
			AnswerIndex:   &a,
		})
	case "say":
		return send(c, network.EventSendMessage, network.SendMessageRequest{
			RoomID:   arg(1),
			PlayerID: clientPlayer,
			Text:     strings.Join(f[min(2, len(f)):], " "),
		})
	case "leave":
		return send(c, network.EventLeaveRoom, network.LeaveRoomRequest{})
	default:
		fmt.Println(clientHelp)
		return nil
	}
}
