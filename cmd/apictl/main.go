package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/mtzanidakis/apiary/internal/ipc"
	"github.com/mtzanidakis/apiary/internal/natsbus"
	"github.com/nats-io/nats.go"
)

func send(natsURL string, op string, payload any) (*ipc.Response, error) {
	conn, err := nats.Connect(natsURL)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	defer conn.Close()

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	data, err := json.Marshal(ipc.Request{Op: op, Payload: raw})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	msg, err := conn.Request(natsbus.TopicIPC, data, 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("ipc request: %w", err)
	}

	var resp ipc.Response
	if err := json.Unmarshal(msg.Data, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("%s", resp.Error)
	}
	return &resp, nil
}

func parseArgs(args []string) map[string]string {
	result := make(map[string]string)
	for i := 0; i < len(args); i++ {
		if len(args[i]) > 2 && args[i][:2] == "--" && i+1 < len(args) {
			result[args[i][2:]] = args[i+1]
			i++
		}
	}
	return result
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, `  apictl create-swarm --topology <hierarchical|mesh|ring|star> --capacity <n>`)
	fmt.Fprintln(os.Stderr, `  apictl destroy-swarm --swarm <id>`)
	fmt.Fprintln(os.Stderr, `  apictl spawn-agent --swarm <id> --role <role>`)
	fmt.Fprintln(os.Stderr, `  apictl run-task --swarm <id> --task "..." [--strategy <name>] [--priority <n>]`)
	fmt.Fprintln(os.Stderr, `  apictl task-status --task <id>`)
	fmt.Fprintln(os.Stderr, `  apictl swarm-status [--swarm <id>]`)
	os.Exit(1)
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fatal("%v", err)
	}
	fmt.Println(string(data))
}

func main() {
	natsURL := os.Getenv("NATS_URL")
	if natsURL == "" {
		natsURL = "nats://localhost:4222"
	}

	if len(os.Args) < 2 {
		usage()
	}

	command := os.Args[1]
	args := parseArgs(os.Args[2:])

	switch command {
	case "create-swarm":
		if args["topology"] == "" {
			fatal("--topology is required")
		}
		capacity, _ := strconv.Atoi(args["capacity"])
		resp, err := send(natsURL, "create-swarm", ipc.CreateSwarmRequest{
			Topology: args["topology"],
			Capacity: capacity,
		})
		if err != nil {
			fatal("%v", err)
		}
		fmt.Printf("Swarm created: %s\n", resp.Swarm.ID)

	case "destroy-swarm":
		if args["swarm"] == "" {
			fatal("--swarm is required")
		}
		if _, err := send(natsURL, "destroy-swarm", ipc.SwarmIDRequest{SwarmID: args["swarm"]}); err != nil {
			fatal("%v", err)
		}
		fmt.Println("Swarm destroyed")

	case "spawn-agent":
		if args["swarm"] == "" || args["role"] == "" {
			fatal("--swarm and --role are required")
		}
		resp, err := send(natsURL, "spawn-agent", ipc.SpawnAgentRequest{
			SwarmID: args["swarm"],
			Role:    args["role"],
		})
		if err != nil {
			fatal("%v", err)
		}
		fmt.Printf("Agent spawned: %s (%s)\n", resp.Agent.ID, resp.Agent.Role)

	case "run-task":
		if args["swarm"] == "" || args["task"] == "" {
			fatal("--swarm and --task are required")
		}
		priority, _ := strconv.Atoi(args["priority"])
		resp, err := send(natsURL, "run-task", ipc.RunTaskRequest{
			SwarmID:     args["swarm"],
			Description: args["task"],
			Priority:    priority,
			Strategy:    args["strategy"],
		})
		if err != nil {
			fatal("%v", err)
		}
		printJSON(resp.Task)

	case "task-status":
		if args["task"] == "" {
			fatal("--task is required")
		}
		resp, err := send(natsURL, "task-status", ipc.TaskIDRequest{TaskID: args["task"]})
		if err != nil {
			fatal("%v", err)
		}
		printJSON(resp.Task)

	case "swarm-status":
		resp, err := send(natsURL, "swarm-status", ipc.SwarmIDRequest{SwarmID: args["swarm"]})
		if err != nil {
			fatal("%v", err)
		}
		if resp.Swarm != nil {
			printJSON(map[string]any{"swarm": resp.Swarm, "agents": resp.Agents})
		} else {
			printJSON(resp.Swarms)
		}

	default:
		usage()
	}
}
