// Copyright 2023 Gustavo C. Viegas. All rights reserved.

// Command stage loads a glTF model into a scene and
// prints the resulting graph.
//
// Usage:
//
//	stage [-config file] [-timeout d] [-plain] model
//
// model is either a local file path or an http(s) URL.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/gviegas/stage/loader"
	"github.com/gviegas/stage/node"
	"github.com/gviegas/stage/scene"
)

var (
	confFile = flag.String("config", "", "JSON configuration `file`")
	timeout  = flag.Duration("timeout", 0, "load timeout (overrides the configuration)")
	plain    = flag.Bool("plain", false, "do not display a progress bar")
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	meshStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	lightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	dimStyle   = lipgloss.NewStyle().Faint(true)
	errStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
)

// fileConfig is the layout of the configuration file.
type fileConfig struct {
	LoadTimeout  string   `json:"loadTimeout,omitempty"`
	DecoderPaths []string `json:"decoderPaths,omitempty"`
	BaseDir      string   `json:"baseDir,omitempty"`
	Ambient      *float32 `json:"ambient,omitempty"`
	Key          *float32 `json:"key,omitempty"`
	Fill         *float32 `json:"fill,omitempty"`
	ShadowSize   int      `json:"shadowSize,omitempty"`
}

// config reads the configuration file, if any, on top of
// scene.DefaultConfig.
func config(name string) (*scene.Config, error) {
	c := scene.DefaultConfig()
	if name == "" {
		return &c, nil
	}
	b, err := os.ReadFile(name)
	if err != nil {
		return nil, err
	}
	var fc fileConfig
	if err := json.Unmarshal(b, &fc); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if fc.LoadTimeout != "" {
		if c.LoadTimeout, err = time.ParseDuration(fc.LoadTimeout); err != nil {
			return nil, fmt.Errorf("%s: loadTimeout: %w", name, err)
		}
	}
	if len(fc.DecoderPaths) > 0 {
		c.DecoderPaths = fc.DecoderPaths
	}
	if fc.BaseDir != "" {
		c.BaseDir = fc.BaseDir
	}
	if fc.Ambient != nil {
		c.Ambient.Intensity = *fc.Ambient
	}
	if fc.Key != nil {
		c.Key.Intensity = *fc.Key
	}
	if fc.Fill != nil {
		c.Fill.Intensity = *fc.Fill
	}
	if fc.ShadowSize > 0 {
		c.Shadow.MapSize = [2]int{fc.ShadowSize, fc.ShadowSize}
	}
	return &c, nil
}

type progressMsg loader.Progress

type doneMsg struct {
	root *node.Node
	err  error
}

// progress displays the state of a LoadModel call.
type progress struct {
	path  string
	p     loader.Progress
	start time.Time
	done  *doneMsg
}

func (m progress) Init() tea.Cmd { return nil }

func (m progress) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case progressMsg:
		m.p = loader.Progress(msg)
	case doneMsg:
		m.done = &msg
		return m, tea.Quit
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m progress) View() string {
	const width = 40
	var b strings.Builder
	b.WriteString(titleStyle.Render("loading " + m.path))
	b.WriteByte('\n')
	if m.p.LengthComputable && m.p.Total > 0 {
		n := int(m.p.Loaded * width / m.p.Total)
		b.WriteString(meshStyle.Render(strings.Repeat("█", n)))
		b.WriteString(dimStyle.Render(strings.Repeat("░", width-n)))
		fmt.Fprintf(&b, " %3d%%", m.p.Loaded*100/m.p.Total)
	} else {
		fmt.Fprintf(&b, "%d bytes", m.p.Loaded)
	}
	fmt.Fprintf(&b, " %s\n", dimStyle.Render(time.Since(m.start).Round(time.Millisecond).String()))
	return b.String()
}

// load calls mgr.LoadModel, displaying its progress
// unless -plain is set.
func load(ctx context.Context, mgr *scene.Manager, path string) (*node.Node, error) {
	if *plain {
		return mgr.LoadModel(ctx, path, nil)
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	prog := tea.NewProgram(progress{path: path, start: time.Now()}, tea.WithOutput(os.Stderr), tea.WithContext(ctx))
	go func() {
		root, err := mgr.LoadModel(ctx, path, func(p loader.Progress) { prog.Send(progressMsg(p)) })
		prog.Send(doneMsg{root, err})
	}()
	m, err := prog.Run()
	if err != nil {
		return nil, err
	}
	done := m.(progress).done
	if done == nil {
		return nil, context.Canceled
	}
	return done.root, done.err
}

// printTree writes the graph rooted at n.
func printTree(n *node.Node, depth int) {
	var tag string
	switch {
	case n.Light != nil:
		tag = lightStyle.Render(n.Light.Type().String() + " light")
	case n.IsMesh():
		g := n.Geometry
		tag = meshStyle.Render(fmt.Sprintf("mesh %d verts %d mats", g.VertexCount(), len(n.Materials)))
	}
	click := ""
	if n.HasClickable() {
		click = dimStyle.Render(fmt.Sprintf("clickable=%t", n.IsClickable()))
	}
	fmt.Printf("%s%s %s %s\n", strings.Repeat("  ", depth), n.Name, tag, click)
	for c := n.First(); c != nil; c = c.Next() {
		printTree(c, depth+1)
	}
}

func main() {
	log.SetFlags(0)
	log.SetPrefix("stage: ")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] model\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	c, err := config(*confFile)
	if err != nil {
		log.Fatal(err)
	}
	if *timeout > 0 {
		c.LoadTimeout = *timeout
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	mgr := scene.NewManager(c)
	defer mgr.Dispose()
	if err := mgr.Initialize(); err != nil {
		log.Fatal(err)
	}
	root, err := load(ctx, mgr, flag.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, errStyle.Render(err.Error()))
		mgr.Dispose()
		os.Exit(1)
	}
	if err := mgr.AddObject(root); err != nil {
		log.Fatal(err)
	}
	fmt.Println(titleStyle.Render(flag.Arg(0)))
	printTree(mgr.Scene().Root(), 0)
	fmt.Println(dimStyle.Render(mgr.Stats().String()))

	mgr.RemoveObject(root)
	mgr.DisposeObject(root)
	fmt.Println(dimStyle.Render("after dispose: " + mgr.Stats().String()))
}
