package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/modelsync/modelsync/pkg/dispatch"
	"github.com/modelsync/modelsync/pkg/model"
	"github.com/modelsync/modelsync/pkg/treemodel"
)

const replHelp = `
modelsync-cli — available commands:

  seed <id>                    Create a fresh single-node root with the given id
  tree                         Print the current tree for the active root
  subscribe                    Subscribe the active watcher to every id in the current tree
  unsubscribe                  Unsubscribe the active watcher from the current tree
  publish <id> <json>           Replace <id>'s payload with the given JSON value
  addchild <parent> <child>     Add a leaf child under <parent>
  delete <id>                   Delete <id> and its subtree
  pause                        Pause the active watcher entirely
  resume                        Resume the active watcher, delivering anything buffered
  ispaused                      Report whether the active watcher is paused
  stats                         Show dispatcher stats
  \help                         Show this help
  \quit  (or exit, quit, Ctrl-D) Exit
`

// watcher is the CLI's single demo Observer: it remembers whatever root it
// last saw and prints every update it receives.
type watcher struct {
	current model.Model
}

func (w *watcher) CurrentModel() model.Model { return w.current }

func (w *watcher) OnModelUpdated(newRoot model.Model, delta *model.Delta, context any) {
	w.current = newRoot
	fmt.Printf("[watcher] updated: changed=%v deleted=%v context=%v\n", keys(delta.Changed), keys(delta.Deleted), context)
}

func keys(m map[model.Id]struct{}) []model.Id {
	out := make([]model.Id, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func runREPL(d *dispatch.Dispatcher) {
	fmt.Println("modelsync-cli — type \\help for commands, \\quit to exit")

	w := &watcher{}
	var root *treemodel.Node

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("modelsync> ")
		if !scanner.Scan() {
			fmt.Println()
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		cmd := fields[0]
		args := fields[1:]

		switch cmd {
		case "\\quit", "exit", "quit":
			return
		case "\\help":
			fmt.Println(replHelp)
		case "seed":
			if len(args) != 1 {
				fmt.Println("usage: seed <id>")
				continue
			}
			root = treemodel.New(args[0], nil)
			w.current = root
			fmt.Printf("seeded root %q\n", args[0])
		case "tree":
			if root == nil {
				fmt.Println("no root seeded yet")
				continue
			}
			printTree(root, 0)
		case "subscribe":
			if root == nil {
				fmt.Println("usage: subscribe (after seed)")
				continue
			}
			w.current = root
			d.Subscribe(w)
			fmt.Println("subscribed to the current tree")
		case "unsubscribe":
			d.Unsubscribe(w)
			fmt.Println("unsubscribed from the current tree")
		case "publish":
			if len(args) < 2 || root == nil {
				fmt.Println("usage: publish <id> <json-value>")
				continue
			}
			var payload any
			if err := json.Unmarshal([]byte(strings.Join(args[1:], " ")), &payload); err != nil {
				fmt.Println("invalid JSON:", err)
				continue
			}
			target := find(root, args[0])
			if target == nil {
				fmt.Println("no such id in current tree:", args[0])
				continue
			}
			replacement := target.WithPayload(payload)
			d.Publish(replacement, nil)
			root = applyLocally(root, model.Patch{args[0]: replacement})
		case "addchild":
			if len(args) != 2 || root == nil {
				fmt.Println("usage: addchild <parent> <child>")
				continue
			}
			parent := find(root, args[0])
			if parent == nil {
				fmt.Println("no such id in current tree:", args[0])
				continue
			}
			newParent := parent.WithChild(treemodel.New(args[1], nil))
			d.Publish(newParent, nil)
			root = applyLocally(root, model.Patch{args[0]: newParent})
		case "delete":
			if len(args) != 1 {
				fmt.Println("usage: delete <id>")
				continue
			}
			if err := d.Delete(args[0]); err != nil {
				fmt.Println("error:", err)
				continue
			}
			root = applyLocally(root, model.Patch{args[0]: nil})
		case "pause":
			d.Pause(w)
			fmt.Println("paused")
		case "resume":
			d.Resume(w)
			fmt.Println("resumed")
		case "ispaused":
			fmt.Println(d.IsPaused(w))
		case "stats":
			s := d.Stats()
			fmt.Printf("%+v\n", s)
		default:
			fmt.Println("unknown command, try \\help")
		}
	}
}

func printTree(n *treemodel.Node, depth int) {
	fmt.Printf("%s- %s = %v\n", strings.Repeat("  ", depth), n.ID, n.Payload)
	for _, c := range n.Children {
		printTree(c, depth+1)
	}
}

func find(n *treemodel.Node, id string) *treemodel.Node {
	if n == nil {
		return nil
	}
	if n.ID == id {
		return n
	}
	for _, c := range n.Children {
		if f := find(c, id); f != nil {
			return f
		}
	}
	return nil
}

// applyLocally mirrors a single-node patch into the CLI's own copy of the
// tree so that subsequent commands (tree, addchild, publish) see the
// update. The Dispatcher does not hand the new tree back to the caller
// directly — only to subscribed observers — so the CLI, which is not
// itself subscribed at the root, keeps its own view in sync this way.
func applyLocally(root *treemodel.Node, patch model.Patch) *treemodel.Node {
	if root == nil {
		return root
	}
	if replacement, ok := patch[root.ID]; ok {
		if replacement == nil {
			return nil
		}
		if rn, ok := replacement.(*treemodel.Node); ok {
			return rn
		}
		return root
	}
	children := make([]*treemodel.Node, 0, len(root.Children))
	for _, c := range root.Children {
		nc := applyLocally(c, patch)
		if nc != nil {
			children = append(children, nc)
		}
	}
	return &treemodel.Node{ID: root.ID, Payload: root.Payload, Children: children}
}
