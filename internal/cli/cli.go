package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/ignatij/tripflow/internal/config"
	internal_http "github.com/ignatij/tripflow/internal/http"
	"github.com/ignatij/tripflow/internal/log"
	internal_nats "github.com/ignatij/tripflow/internal/nats"
	"github.com/ignatij/tripflow/pkg/models"
	"github.com/ignatij/tripflow/pkg/service"
	"github.com/ignatij/tripflow/pkg/status"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func SetupCLI(rootCmd *cobra.Command) {
	rootCmd.PersistentFlags().String("config", "", "Path to the YAML config file (default "+config.DefaultPath+" if present)")
	rootCmd.PersistentFlags().String("backend", "", "Base URL of the travel planner backend")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: DEBUG, INFO, WARN or ERROR")

	planCmd := &cobra.Command{
		Use:   "plan",
		Short: "Plan a trip and follow the workflow until it finishes",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadConfig(cmd)
			req := travelRequestFromFlags(cmd)
			decide, err := deciderFromFlags(cmd)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			os.Exit(runPlan(cmd.Context(), cfg, req, decide))
		},
	}
	planCmd.Flags().String("name", "", "Traveler name")
	planCmd.Flags().String("preferences", "", "What the trip should be like, e.g. \"beach, food, relaxing\"")
	planCmd.Flags().Int("days", models.DefaultDurationInDays, "Trip duration in days")
	planCmd.Flags().String("budget", "", "Budget, e.g. \"$2000\"")
	planCmd.Flags().String("dates", "", "Travel dates")
	planCmd.Flags().String("requirements", "", "Special requirements")
	planCmd.Flags().Bool("auto-approve", false, "Approve the plan without prompting")
	planCmd.Flags().Bool("auto-reject", false, "Reject the plan without prompting")
	planCmd.Flags().String("comments", "", "Comments sent with an automatic decision")
	planCmd.MarkFlagsMutuallyExclusive("auto-approve", "auto-reject")

	statusCmd := &cobra.Command{
		Use:   "status [instance-id]",
		Short: "Print the current status of a workflow",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadConfig(cmd)
			printStatus(cmd.Context(), internal_http.NewClient(cfg.Backend), args[0])
		},
	}

	approveCmd := decisionCommand("approve", true)
	rejectCmd := decisionCommand("reject", false)

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve one planning session over a local JSON API",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadConfig(cmd)
			port, err := cmd.Flags().GetString("port")
			if err != nil {
				log.GetLogger().Errorf("Error retrieving port flag: %v", err)
				os.Exit(1)
			}
			if port != "" {
				cfg.Server.Port = port
			}
			serve(cmd.Context(), cfg)
		},
	}
	serveCmd.Flags().String("port", "", "Port to listen on (overrides server.port)")

	rootCmd.AddCommand(planCmd, statusCmd, approveCmd, rejectCmd, serveCmd)
}

func decisionCommand(use string, approved bool) *cobra.Command {
	short := "Approve the travel plan of a workflow waiting at the approval gate"
	if !approved {
		short = "Reject the travel plan of a workflow waiting at the approval gate"
	}
	cmd := &cobra.Command{
		Use:   use + " [instance-id]",
		Short: short,
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadConfig(cmd)
			comments, err := cmd.Flags().GetString("comments")
			if err != nil {
				log.GetLogger().Errorf("Error retrieving comments flag: %v", err)
				os.Exit(1)
			}
			sendDecision(cmd.Context(), internal_http.NewClient(cfg.Backend), args[0],
				models.ApprovalDecision{Approved: approved, Comments: comments})
		},
	}
	cmd.Flags().String("comments", "", "Comments sent with the decision")
	return cmd
}

// loadConfig reads the config file and environment, then applies the global flags.
func loadConfig(cmd *cobra.Command) *config.Config {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		log.GetLogger().Errorf("Error retrieving config flag: %v", err)
		os.Exit(1)
	}
	backendURL, _ := cmd.Flags().GetString("backend")
	logLevel, _ := cmd.Flags().GetString("log-level")
	cfg, err := config.Load(path, func(cfg *config.Config) {
		if backendURL != "" {
			cfg.Backend.BaseURL = backendURL
		}
		if logLevel != "" {
			cfg.Log.Level = logLevel
		}
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to load config: %v\n", err)
		os.Exit(1)
	}
	log.SetLevel(cfg.Log.Level)
	log.SetFormat(cfg.Log.Format)
	log.GetLogger().Debugf("Using backend %s", cfg.Backend.BaseURL)
	return cfg
}

func travelRequestFromFlags(cmd *cobra.Command) models.TravelRequest {
	var req models.TravelRequest
	var err error
	flags := cmd.Flags()
	for name, dst := range map[string]*string{
		"name":         &req.UserName,
		"preferences":  &req.Preferences,
		"budget":       &req.Budget,
		"dates":        &req.TravelDates,
		"requirements": &req.SpecialRequirements,
	} {
		if *dst, err = flags.GetString(name); err != nil {
			log.GetLogger().Errorf("Error retrieving %s flag: %v", name, err)
			os.Exit(1)
		}
	}
	if req.DurationInDays, err = flags.GetInt("days"); err != nil {
		log.GetLogger().Errorf("Error retrieving days flag: %v", err)
		os.Exit(1)
	}
	return req
}

// decider picks the decision for the plan shown at the approval gate.
// ok is false when no decision can be made from this process.
type decider func() (decision models.ApprovalDecision, ok bool)

func deciderFromFlags(cmd *cobra.Command) (decider, error) {
	autoApprove, err := cmd.Flags().GetBool("auto-approve")
	if err != nil {
		return nil, err
	}
	autoReject, err := cmd.Flags().GetBool("auto-reject")
	if err != nil {
		return nil, err
	}
	comments, err := cmd.Flags().GetString("comments")
	if err != nil {
		return nil, err
	}
	switch {
	case autoApprove || autoReject:
		d := models.ApprovalDecision{Approved: autoApprove, Comments: comments}
		return func() (models.ApprovalDecision, bool) { return d, true }, nil
	case term.IsTerminal(int(os.Stdin.Fd())):
		in := bufio.NewReader(os.Stdin)
		return func() (models.ApprovalDecision, bool) { return prompt(in, os.Stdout) }, nil
	default:
		return func() (models.ApprovalDecision, bool) { return models.ApprovalDecision{}, false }, nil
	}
}

// prompt asks for a decision until the answer is yes or no. It gives up on EOF.
func prompt(in *bufio.Reader, out io.Writer) (models.ApprovalDecision, bool) {
	for {
		fmt.Fprint(out, "Approve this plan? [y/n]: ")
		answer, err := in.ReadString('\n')
		if err != nil && answer == "" {
			return models.ApprovalDecision{}, false
		}
		var d models.ApprovalDecision
		switch strings.ToLower(strings.TrimSpace(answer)) {
		case "y", "yes":
			d.Approved = true
		case "n", "no":
		default:
			continue
		}
		fmt.Fprint(out, "Comments (optional): ")
		comments, _ := in.ReadString('\n')
		d.Comments = strings.TrimSpace(comments)
		return d, true
	}
}

// runPlan drives one session to a terminal state and returns the exit code.
func runPlan(ctx context.Context, cfg *config.Config, req models.TravelRequest, decide decider) int {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	p := newPrinter(os.Stdout)
	opts := []service.Option{
		service.WithPollInterval(cfg.Polling.Interval),
		service.WithNotifier(p),
	}
	if publisher := connectPublisher(cfg); publisher != nil {
		defer publisher.Close()
		opts = append(opts, service.WithNotifier(publisher))
	}
	client := service.NewWorkflowStatusClient(ctx, internal_http.NewClient(cfg.Backend), log.GetLogger(), opts...)
	defer client.Close()

	id, err := client.StartWorkflow(ctx, req)
	if err != nil {
		log.GetLogger().Errorf("Failed to start workflow: %v", err)
		return 1
	}

	for {
		select {
		case <-ctx.Done():
			fmt.Fprintf(os.Stdout, "\nStopped following workflow %s; it keeps running on the backend.\n", id)
			return 1
		case state := <-p.finished:
			// wait for the poll that finished the session to print everything
			client.Close()
			if state == models.FailedSessionState {
				return 1
			}
			return 0
		case <-p.awaiting:
			client.Close()
			decision, ok := decide()
			if !ok {
				fmt.Fprintf(os.Stdout, "Run 'tripflow approve %s' or 'tripflow reject %s' to decide.\n", id, id)
				return 0
			}
			if err := client.SubmitApproval(ctx, decision); err != nil {
				log.GetLogger().Errorf("Failed to submit decision: %v", err)
			}
		}
	}
}

func connectPublisher(cfg *config.Config) *internal_nats.Publisher {
	if cfg.NATS.URL == "" {
		return nil
	}
	publisher, err := internal_nats.Connect(cfg.NATS)
	if err != nil {
		log.GetLogger().Errorf("Session events will not be published: %v", err)
		return nil
	}
	return publisher
}

func printStatus(ctx context.Context, b *internal_http.Client, id string) {
	raw, err := b.GetStatus(ctx, id)
	if err != nil {
		log.GetLogger().Errorf("Failed to get status of workflow %s: %v", id, err)
		fmt.Fprintf(os.Stderr, "Error: failed to get status: %v\n", err)
		os.Exit(1)
	}
	snap, err := status.Normalize(raw)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: unexpected status payload: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stdout, "Workflow %s\n", id)
	fmt.Fprintf(os.Stdout, "- Step: %s (%d%%)\n", snap.Step, snap.Progress)
	fmt.Fprintf(os.Stdout, "- Message: %s\n", snap.Message)
	if snap.RuntimeStatus != "" {
		fmt.Fprintf(os.Stdout, "- Runtime status: %s\n", snap.RuntimeStatus)
	}
	if snap.Destination != "" {
		fmt.Fprintf(os.Stdout, "- Destination: %s\n", snap.Destination)
	}
	if snap.BookingID != "" {
		fmt.Fprintf(os.Stdout, "- Booking ID: %s\n", snap.BookingID)
	}
	if snap.DocumentURL != "" {
		fmt.Fprintf(os.Stdout, "- Document: %s\n", snap.DocumentURL)
	}
	if snap.Step == models.WaitingForApprovalStep {
		fmt.Fprintf(os.Stdout, "\n%s\n", service.RenderPlan(snap))
	}
}

func sendDecision(ctx context.Context, b *internal_http.Client, id string, decision models.ApprovalDecision) {
	if err := b.SubmitApproval(ctx, id, decision); err != nil {
		log.GetLogger().Errorf("Failed to submit decision for workflow %s: %v", id, err)
		fmt.Fprintf(os.Stderr, "Error: failed to submit decision: %v\n", err)
		os.Exit(1)
	}
	verb := "Rejected"
	if decision.Approved {
		verb = "Approved"
	}
	fmt.Fprintf(os.Stdout, "%s the travel plan of workflow %s\n", verb, id)
}

func serve(ctx context.Context, cfg *config.Config) {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	opts := []service.Option{service.WithPollInterval(cfg.Polling.Interval)}
	if publisher := connectPublisher(cfg); publisher != nil {
		defer publisher.Close()
		opts = append(opts, service.WithNotifier(publisher))
	}
	client := service.NewWorkflowStatusClient(ctx, internal_http.NewClient(cfg.Backend), log.GetLogger(), opts...)
	defer client.Close()

	errCh := make(chan error, 1)
	go func() {
		errCh <- internal_http.StartServer(cfg.Server.Port, client)
	}()
	select {
	case <-ctx.Done():
		log.GetLogger().Infof("Shutting down session server")
	case err := <-errCh:
		log.GetLogger().Errorf("Session server stopped: %v", err)
		fmt.Fprintf(os.Stderr, "Error: session server stopped: %v\n", err)
		os.Exit(1)
	}
}
