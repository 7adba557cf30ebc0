package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"mesaclient/internal/cart"
	"mesaclient/internal/chat"
	"mesaclient/internal/clientstate"
	"mesaclient/internal/config"
	"mesaclient/internal/discount"
	"mesaclient/internal/httpx"
	"mesaclient/internal/realtime"
	"mesaclient/internal/session"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	token := strings.TrimSpace(os.Getenv("API_TOKEN"))
	userID := strings.TrimSpace(os.Getenv("API_USER_ID"))
	if token == "" {
		log.Fatal("API_TOKEN is required")
	}
	sess := session.NewRefreshable(token, userID)

	api := httpx.NewClient(cfg.APIBaseURL, sess, cfg.RequestTimeout)
	machine := clientstate.New(api)
	basket := cart.New(api, cfg.MutationDebounce)
	discounts := discount.NewStore(cfg.StorageDir)

	socketCfg := realtime.Config{
		URL:               cfg.SocketURL,
		Session:           sess,
		ReconnectAttempts: cfg.ReconnectAttempts,
		ReconnectDelay:    cfg.ReconnectDelay,
		OnError: func(err error) {
			fmt.Printf("\n(conexión en tiempo real caída: %v)\n> ", err)
		},
	}

	ctx := context.Background()
	if err := machine.Refresh(ctx); err != nil {
		log.Printf("[main] initial refresh: %v", err)
	}
	if err := basket.RefreshOrders(ctx); err != nil {
		log.Printf("[main] initial orders: %v", err)
	}

	updates := realtime.NewClientUpdates(socketCfg, sess.UserID(), func() {
		machine.Invalidate()
		if err := basket.RefreshOrders(context.Background()); err != nil {
			log.Printf("[main] orders refresh: %v", err)
		}
	})
	if err := updates.Connect(ctx); err != nil {
		log.Printf("[main] realtime connect: %v", err)
	}
	defer updates.Close()
	defer machine.Close()

	repl(ctx, api, socketCfg, machine, basket, discounts)
}

func repl(ctx context.Context, api *httpx.Client, socketCfg realtime.Config, machine *clientstate.Machine, basket *cart.Reconciler, discounts *discount.Store) {
	fmt.Println("mesaclient — comandos: state, menu, add <id> [qty], cart, submit <table|delivery> <dest>, chat <table|delivery [id]>, chats, refresh, discount, quit")
	var menu cart.Menu
	sc := bufio.NewScanner(os.Stdin)
	for fmt.Print("> "); sc.Scan(); fmt.Print("> ") {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "quit", "exit":
			return

		case "state":
			printState(machine.Data())

		case "refresh":
			if err := machine.Refresh(ctx); err != nil {
				fmt.Println(httpx.UserMessage(err))
				continue
			}
			if err := basket.RefreshOrders(ctx); err != nil {
				fmt.Println(httpx.UserMessage(err))
				continue
			}
			printState(machine.Data())

		case "menu":
			m, err := basket.FetchMenu(ctx)
			if err != nil {
				fmt.Println(httpx.UserMessage(err))
				continue
			}
			menu = m
			for _, it := range append(append([]cart.MenuItem{}, m.Platos...), m.Bebidas...) {
				fmt.Printf("  %-8s %-28s %6.2f€  %2d min\n", it.ID, it.Name, it.Price, it.PrepMinutes)
			}

		case "add":
			if len(fields) < 2 {
				fmt.Println("uso: add <id> [qty]")
				continue
			}
			qty := 1
			if len(fields) > 2 {
				qty, _ = strconv.Atoi(fields[2])
			}
			item, ok := findMenuItem(menu, fields[1])
			if !ok {
				fmt.Println("id desconocido (ejecuta `menu` primero)")
				continue
			}
			basket.AddItem(item.CartItem(qty))
			fmt.Printf("carrito: %d artículos, %.2f€, ~%d min\n", basket.Count(), basket.Amount(), basket.PrepMinutes())

		case "cart":
			if basket.HasPendingOrder() {
				fmt.Println("pedido pendiente de aprobación:")
				for _, it := range basket.PendingItems() {
					fmt.Printf("  %dx %-28s [%s]\n", it.Quantity, it.Name, it.Status)
				}
				continue
			}
			for _, it := range basket.Items() {
				fmt.Printf("  %dx %-28s %6.2f€\n", it.Quantity, it.Name, it.Price*float64(it.Quantity))
			}
			fmt.Printf("total %.2f€, ~%d min\n", basket.Amount(), basket.PrepMinutes())

		case "submit":
			if len(fields) < 3 {
				fmt.Println("uso: submit table <id> | submit delivery <dirección>")
				continue
			}
			var err error
			switch fields[1] {
			case "table":
				tableID, convErr := strconv.ParseInt(fields[2], 10, 64)
				if convErr != nil {
					fmt.Println("id de mesa inválido")
					continue
				}
				_, err = basket.CreateDineInOrder(ctx, tableID, basket.Items())
			case "delivery":
				_, err = basket.CreateDeliveryOrder(ctx, strings.Join(fields[2:], " "), basket.Items())
			default:
				fmt.Println("uso: submit table <id> | submit delivery <dirección>")
				continue
			}
			if err != nil {
				fmt.Println(httpx.UserMessage(err))
				continue
			}
			if err := basket.SubmitOrder(ctx); err != nil {
				fmt.Println(httpx.UserMessage(err))
				continue
			}
			fmt.Println("pedido enviado")

		case "chats":
			list, err := chat.MyDeliveryChats(ctx, api)
			if err != nil {
				fmt.Println(httpx.UserMessage(err))
				continue
			}
			if len(list) == 0 {
				fmt.Println("sin conversaciones de reparto")
				continue
			}
			for _, info := range list {
				state := "abierta"
				if info.Closed {
					state = "cerrada"
				}
				if info.DeliveryID != nil {
					fmt.Printf("  reparto %d (%s)\n", *info.DeliveryID, state)
				}
			}

		case "chat":
			if len(fields) < 2 {
				fmt.Println("uso: chat table | chat delivery <id>")
				continue
			}
			var conv *chat.Session
			switch fields[1] {
			case "table":
				data := machine.Data()
				if data.OccupiedTable == nil {
					fmt.Println("sin mesa ocupada")
					continue
				}
				conv = chat.NewTableSession(api, socketCfg, data.OccupiedTable.ID)
			case "delivery":
				if len(fields) < 3 {
					fmt.Println("uso: chat delivery <id>")
					continue
				}
				deliveryID, convErr := strconv.ParseInt(fields[2], 10, 64)
				if convErr != nil {
					fmt.Println("id de reparto inválido")
					continue
				}
				conv = chat.NewDeliverySession(api, socketCfg, deliveryID)
			default:
				fmt.Println("uso: chat table | chat delivery <id>")
				continue
			}
			runChat(ctx, conv, sc)

		case "discount":
			rec, err := discounts.Load()
			if err != nil {
				fmt.Println(err)
				continue
			}
			if !rec.Received {
				fmt.Println("sin descuento")
				continue
			}
			fmt.Printf("descuento de %.2f€ disponible\n", rec.Amount)

		default:
			fmt.Println("comando desconocido")
		}
	}
}

// runChat takes over the prompt for one conversation until /salir.
func runChat(ctx context.Context, conv *chat.Session, sc *bufio.Scanner) {
	conv.OnMessage = func(msg chat.Message) {
		fmt.Printf("\n[%s] %s\nchat> ", msg.SenderID, msg.Text)
	}
	conv.OnStatus = func(st chat.Status) {
		fmt.Printf("\n(chat: %s)\nchat> ", st)
	}
	if err := conv.Open(ctx); err != nil {
		fmt.Println(httpx.UserMessage(err))
		return
	}
	defer conv.Close()

	for _, msg := range conv.Messages() {
		fmt.Printf("[%s] %s\n", msg.SenderID, msg.Text)
	}
	fmt.Println("(escribe /salir para volver)")
	for fmt.Print("chat> "); sc.Scan(); fmt.Print("chat> ") {
		line := strings.TrimSpace(sc.Text())
		if line == "/salir" {
			return
		}
		if line == "" {
			continue
		}
		if !conv.SendMessage(line) {
			fmt.Println("mensaje no enviado")
		}
	}
}

func findMenuItem(menu cart.Menu, id string) (cart.MenuItem, bool) {
	for _, it := range menu.Platos {
		if it.ID == id {
			return it, true
		}
	}
	for _, it := range menu.Bebidas {
		if it.ID == id {
			return it, true
		}
	}
	return cart.MenuItem{}, false
}

func printState(data clientstate.Data) {
	fmt.Printf("estado: %s\n", data.State)
	switch {
	case data.WaitingPosition != nil:
		fmt.Printf("  posición en cola: %d\n", *data.WaitingPosition)
	case data.AssignedTable != nil:
		fmt.Printf("  mesa asignada: %d\n", data.AssignedTable.Number)
	case data.OccupiedTable != nil:
		fmt.Printf("  mesa %d ocupada (entrega: %s)\n", data.OccupiedTable.Number, data.DeliveryConfirmation)
	}
}
