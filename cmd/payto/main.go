package main

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"payto"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var cfg payto.Config

// current is the app opened by the running command; die closes it.
var current *app

// app is the wiring shared by every command that touches the store or the
// network.
type app struct {
	db       *sql.DB
	logger   *payto.ZapLogger
	metrics  *payto.PrometheusRecorder
	resolver *payto.Resolver
	catalog  *payto.Catalog
	settings *payto.SettingsStore
	closers  []func()
}

func main() {
	var err error
	cfg, err = payto.LoadConfig()
	if err != nil {
		die(err)
	}

	root := &cobra.Command{
		Use:          "payto",
		Short:        "resolve recipients and pick the cheapest way to pay them",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return cfg.Validate()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&cfg.SolanaRPC, "rpc", cfg.SolanaRPC, "Solana RPC URL")
	pf.StringVar(&cfg.EthereumRPC, "eth-rpc", cfg.EthereumRPC, "Ethereum RPC URL for ENS (empty disables ENS)")
	pf.StringVar(&cfg.RegistryProgram, "registry", cfg.RegistryProgram, "alias registry program id (empty disables on-chain usernames)")
	pf.StringVar(&cfg.DBPath, "db", cfg.DBPath, "local database path")
	pf.StringVar(&cfg.KeyPath, "keypair", cfg.KeyPath, "wallet keystore path")
	pf.StringVar(&cfg.PostgresDSN, "pg", cfg.PostgresDSN, "shared username directory DSN")
	pf.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	pf.DurationVar(&cfg.CacheTTL, "cache-ttl", cfg.CacheTTL, "how long resolutions are cached (0 disables)")
	pf.DurationVar(&cfg.ResolveTimeout, "timeout", cfg.ResolveTimeout, "per lookup timeout")

	root.AddCommand(resolveCmd())
	root.AddCommand(choicesCmd())
	root.AddCommand(chainsCmd())
	root.AddCommand(tokensCmd())
	root.AddCommand(planCmd())
	root.AddCommand(historyCmd())
	root.AddCommand(contactsCmd())
	root.AddCommand(usernamesCmd())
	root.AddCommand(settingsCmd())
	root.AddCommand(walletCmd())
	root.AddCommand(serveCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func setup(ctx context.Context) *app {
	logger, err := payto.NewZapLogger(cfg.LogLevel)
	if err != nil {
		die(err)
	}

	db, err := payto.OpenDB(cfg.DBPath)
	if err != nil {
		die(err)
	}

	a := &app{
		db:       db,
		logger:   logger,
		metrics:  payto.NewPrometheusRecorder(),
		catalog:  payto.DefaultCatalog(),
		settings: payto.NewSettingsStore(db),
	}
	a.closers = append(a.closers, func() { db.Close() })
	current = a

	opts := []payto.Option{
		payto.WithLogger(logger),
		payto.WithMetrics(a.metrics),
		payto.WithTimeout(cfg.ResolveTimeout),
		payto.WithSNS(payto.NewSNSResolver(payto.NewRPCAccounts(cfg.SolanaRPC))),
	}
	if cfg.CacheTTL > 0 {
		opts = append(opts, payto.WithCache(payto.NewSQLCache(db), cfg.CacheTTL))
	}

	if cfg.EthereumRPC != "" {
		ens, err := payto.DialENS(ctx, cfg.EthereumRPC)
		if err != nil {
			logger.Warn("ens disabled", map[string]any{"error": err.Error()})
		} else {
			opts = append(opts, payto.WithENS(ens))
			a.closers = append(a.closers, ens.Close)
		}
	}

	dirs := payto.Directories{payto.NewSQLDirectory(db)}
	if cfg.PostgresDSN != "" {
		pg, err := payto.NewPgDirectory(ctx, cfg.PostgresDSN)
		if err != nil {
			logger.Warn("shared username directory disabled", map[string]any{"error": err.Error()})
		} else {
			dirs = append(dirs, pg)
			a.closers = append(a.closers, pg.Close)
		}
	}
	if cfg.RegistryProgram != "" {
		reg, err := payto.NewRegistryDirectory(cfg.RegistryProgram, payto.NewRPCAccounts(cfg.SolanaRPC))
		if err != nil {
			die(err)
		}
		dirs = append(dirs, reg)
	}
	opts = append(opts, payto.WithUsernames(dirs))

	a.resolver = payto.NewResolver(opts...)
	return a
}

func (a *app) close() {
	if current == a {
		current = nil
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
	_ = a.logger.Sync()
}

func resolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <recipient>",
		Short: "classify a recipient and look up its address",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			ctx := cmd.Context()
			a := setup(ctx)
			defer a.close()

			t := a.resolver.Resolve(ctx, payto.Match(args[0]))
			fmt.Printf("kind: %s\n", t.Kind)
			if l := t.Label(); l != "" && l != t.Address {
				fmt.Printf("name: %s\n", l)
			}
			if t.Address != "" {
				fmt.Printf("address: %s\n", t.Address)
			} else if t.NeedsResolution() {
				fmt.Println("address: (not found)")
			}
			fmt.Printf("families: %s\n", joinFamilies(t.Families()))
		},
	}
}

func choicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "choices <recipient>",
		Short: "list the tokens and chains a recipient can be paid with",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			ctx := cmd.Context()
			a := setup(ctx)
			defer a.close()

			t := a.resolver.Resolve(ctx, payto.Match(args[0]))
			choices := payto.BuildChoices(t, a.catalog)
			if len(choices) == 0 {
				fmt.Printf("no way to pay %q\n", args[0])
				return
			}

			fmt.Printf("%-12s | %-16s | %s\n", "TOKEN", "BEST", "CHAINS")
			fmt.Println(strings.Repeat("-", 65))
			for _, c := range choices {
				fmt.Printf("%-12s | %-16s | %s\n", c.Token, c.Best, joinChains(c.Chains))
			}
		},
	}
}

func chainsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chains",
		Short: "list supported chains",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%-16s | %-9s | %-6s | %s\n", "ID", "NAME", "FAMILY", "ALIASES")
			fmt.Println(strings.Repeat("-", 60))
			for _, c := range payto.Chains() {
				fmt.Printf("%-16s | %-9s | %-6s | %s\n", c.ID, c.Name, c.Family, strings.Join(c.AlternativeNames, ", "))
			}
		},
	}
}

func tokensCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tokens",
		Short: "list supported tokens",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%-5s | %-6s | %-8s | %s\n", "KEY", "SYMBOL", "DECIMALS", "CHAINS")
			fmt.Println(strings.Repeat("-", 65))
			for _, t := range payto.DefaultCatalog().Tokens() {
				fmt.Printf("%-5s | %-6s | %-8d | %s\n", t.Key, t.Symbol, t.Decimals, joinChains(t.Chains()))
			}
		},
	}
}

func planCmd() *cobra.Command {
	var token, chain string
	cmd := &cobra.Command{
		Use:   "plan <recipient> <amount>",
		Short: "check and record a send",
		Long:  "Example: payto plan @joao 12.5 --token usdc --chain base",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			ctx := cmd.Context()
			a := setup(ctx)
			defer a.close()

			planner := payto.NewPlanner(a.db, a.resolver, a.catalog, a.settings, a.logger)
			if pub, err := payto.WalletPubkey(cfg.KeyPath); err == nil {
				planner.SetWallet(pub)
			}

			plan, err := planner.Plan(ctx, payto.PlanRequest{
				Input:  args[0],
				Token:  token,
				Chain:  chain,
				Amount: args[1],
			})
			if err != nil {
				die(err)
			}

			fmt.Printf("plan: %s (%s)\n", plan.Send.ID[:8], plan.Send.Status)
			fmt.Printf("to: %s\n", describe(plan.Target))
			fmt.Printf("amount: %s\n", payto.FormatAmount(plan.Amount, plan.Token.Symbol))
			fmt.Printf("chain: %s\n", plan.Send.Chain)
			if plan.Contract != "" {
				fmt.Printf("contract: %s\n", plan.Contract)
			}
			if len(plan.Choice.Chains) > 1 {
				fmt.Printf("also on: %s\n", joinChains(others(plan.Choice.Chains, plan.Send.Chain)))
			}
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "token key or id (default from settings)")
	cmd.Flags().StringVar(&chain, "chain", "", "chain id or name (default cheapest)")
	return cmd
}

func historyCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "list planned sends",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := cmd.Context()
			a := setup(ctx)
			defer a.close()

			sends, err := payto.NewPlanner(a.db, a.resolver, a.catalog, a.settings, a.logger).Recent(ctx, limit)
			if err != nil {
				die(err)
			}
			if len(sends) == 0 {
				fmt.Println("no sends")
				return
			}

			fmt.Printf("%-10s | %-14s | %18s | %-14s | %-7s | %s\n", "ID", "TO", "AMOUNT", "CHAIN", "STATUS", "TIME")
			fmt.Println(strings.Repeat("-", 90))
			now := time.Now().Unix()
			for _, s := range sends {
				symbol := string(s.Token)
				if tok, ok := a.catalog.Lookup(s.Token); ok {
					symbol = tok.Symbol
				}
				fmt.Printf("%-10s | %-14s | %18s | %-14s | %-7s | %s\n",
					s.ID[:8],
					trunc(s.Input, 14),
					s.Amount+" "+symbol,
					s.Chain,
					s.Status,
					fmtAgo(now-s.Time),
				)
			}
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of entries")
	return cmd
}

func contactsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "contacts",
		Short: "manage the address book",
	}

	var c payto.Contact
	add := &cobra.Command{
		Use:   "add",
		Short: "add a contact",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := cmd.Context()
			a := setup(ctx)
			defer a.close()

			saved, err := payto.NewContactBook(a.db).Add(ctx, c)
			if err != nil {
				die(err)
			}
			fmt.Printf("added: %s (%s)\n", saved.Name, saved.ID)
		},
	}
	add.Flags().StringVar(&c.Name, "name", "", "display name")
	add.Flags().StringVar(&c.Handle, "handle", "", "app handle, e.g. @alice")
	add.Flags().StringVar(&c.Address, "address", "", "Solana or EVM address")
	add.Flags().StringVar(&c.Phone, "phone", "", "phone number")
	add.Flags().StringVar(&c.Email, "email", "", "email address")

	list := &cobra.Command{
		Use:   "list",
		Short: "list contacts",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := cmd.Context()
			a := setup(ctx)
			defer a.close()

			contacts, err := payto.NewContactBook(a.db).List(ctx)
			if err != nil {
				die(err)
			}
			printContacts(contacts)
		},
	}

	search := &cobra.Command{
		Use:   "search <query>",
		Short: "fuzzy search contacts",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			ctx := cmd.Context()
			a := setup(ctx)
			defer a.close()

			contacts, err := payto.NewContactBook(a.db).Search(ctx, args[0], 10)
			if err != nil {
				die(err)
			}
			printContacts(contacts)
		},
	}

	rm := &cobra.Command{
		Use:   "rm <id>",
		Short: "delete a contact",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			ctx := cmd.Context()
			a := setup(ctx)
			defer a.close()

			if err := payto.NewContactBook(a.db).Delete(ctx, args[0]); err != nil {
				die(err)
			}
			fmt.Println("deleted")
		},
	}

	cmd.AddCommand(add, list, search, rm)
	return cmd
}

func usernamesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "usernames",
		Short: "manage locally known handles",
	}

	add := &cobra.Command{
		Use:   "add <handle> <address>",
		Short: "bind a handle to an address",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			ctx := cmd.Context()
			a := setup(ctx)
			defer a.close()

			if err := payto.NewSQLDirectory(a.db).Register(ctx, args[0], args[1]); err != nil {
				die(err)
			}
			fmt.Printf("%s -> %s\n", args[0], args[1])
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "list locally known handles",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := cmd.Context()
			a := setup(ctx)
			defer a.close()

			aliases, err := payto.NewSQLDirectory(a.db).List(ctx)
			if err != nil {
				die(err)
			}
			if len(aliases) == 0 {
				fmt.Println("no usernames")
				return
			}
			for _, al := range aliases {
				fmt.Printf("@%-20s %s\n", al.Handle, al.Address)
			}
		},
	}

	cmd.AddCommand(add, list)
	return cmd
}

func settingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "show or change send preferences",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "print current settings",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := cmd.Context()
			a := setup(ctx)
			defer a.close()

			st, err := a.settings.Load(ctx)
			if err != nil {
				die(err)
			}
			fmt.Printf("default token: %s\n", st.DefaultToken)
			if len(st.HiddenTokens) > 0 {
				hidden := make([]string, len(st.HiddenTokens))
				for i, h := range st.HiddenTokens {
					hidden[i] = string(h)
				}
				fmt.Printf("hidden: %s\n", strings.Join(hidden, ", "))
			}
			if st.EVMAddress != "" {
				fmt.Printf("evm address: %s\n", st.EVMAddress)
			}
		},
	}

	setToken := &cobra.Command{
		Use:   "set-token <token>",
		Short: "set the default token",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			updateSettings(cmd.Context(), func(a *app, st *payto.Settings) error {
				tok, err := a.catalog.Parse(args[0])
				if err != nil {
					return err
				}
				st.DefaultToken = tok.ID
				return nil
			})
		},
	}

	setEVM := &cobra.Command{
		Use:   "set-evm <address>",
		Short: "set this wallet's EVM address",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			updateSettings(cmd.Context(), func(a *app, st *payto.Settings) error {
				st.EVMAddress = args[0]
				return nil
			})
		},
	}

	hide := &cobra.Command{
		Use:   "hide <token>",
		Short: "hide a token from default selection",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			updateSettings(cmd.Context(), func(a *app, st *payto.Settings) error {
				tok, err := a.catalog.Parse(args[0])
				if err != nil {
					return err
				}
				if !st.Hidden(tok.ID) {
					st.HiddenTokens = append(st.HiddenTokens, tok.ID)
				}
				return nil
			})
		},
	}

	cmd.AddCommand(show, setToken, setEVM, hide)
	return cmd
}

func updateSettings(ctx context.Context, fn func(*app, *payto.Settings) error) {
	a := setup(ctx)
	defer a.close()

	st, err := a.settings.Load(ctx)
	if err != nil {
		die(err)
	}
	if err := fn(a, &st); err != nil {
		die(err)
	}
	unsubscribe := a.settings.Subscribe(func(s payto.Settings) {
		a.logger.Info("settings saved", map[string]any{"default_token": s.DefaultToken})
	})
	defer unsubscribe()

	if err := a.settings.Save(ctx, st); err != nil {
		die(err)
	}
	fmt.Println("saved")
}

func walletCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wallet",
		Short: "create, recover or show the local wallet",
	}

	initc := &cobra.Command{
		Use:   "init",
		Short: "create new wallet",
		Run: func(cmd *cobra.Command, args []string) {
			if _, err := os.Stat(cfg.KeyPath); err == nil {
				fmt.Println("wallet exists")
				return
			}

			mnemonic, w, err := payto.NewWallet()
			if err != nil {
				die(err)
			}

			fmt.Printf("pubkey: %s\n\n", w.Pubkey)
			fmt.Println("save your seed phrase:")
			fmt.Println(mnemonic)
			fmt.Println("")

			pwd := readpwd("password: ")
			if err := payto.SaveWallet(cfg.KeyPath, w, pwd); err != nil {
				die(err)
			}
			fmt.Printf("saved: %s\n", cfg.KeyPath)
		},
	}

	recoverc := &cobra.Command{
		Use:   "recover",
		Short: "restore wallet from mnemonic",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Print("mnemonic: ")
			reader := bufio.NewReader(os.Stdin)
			mnemonic, _ := reader.ReadString('\n')

			w, err := payto.RecoverWallet(mnemonic)
			if err != nil {
				die(err)
			}
			fmt.Printf("pubkey: %s\n", w.Pubkey)

			pwd := readpwd("password: ")
			if err := payto.SaveWallet(cfg.KeyPath, w, pwd); err != nil {
				die(err)
			}
			fmt.Println("wallet recovered")
		},
	}

	receive := &cobra.Command{
		Use:   "receive",
		Short: "print the addresses this wallet receives on",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := cmd.Context()
			pub, err := payto.WalletPubkey(cfg.KeyPath)
			if err != nil {
				die(fmt.Errorf("no wallet: run 'payto wallet init' first: %w", err))
			}
			fmt.Printf("%-8s %s\n", "solana", pub)

			a := setup(ctx)
			defer a.close()
			st, err := a.settings.Load(ctx)
			if err != nil {
				die(err)
			}
			if st.EVMAddress != "" {
				fmt.Printf("%-8s %s\n", "evm", st.EVMAddress)
			}
		},
	}

	cmd.AddCommand(initc, recoverc, receive)
	return cmd
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "serve resolution and send choices over HTTP",
		Run: func(cmd *cobra.Command, args []string) {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a := setup(ctx)
			defer a.close()

			srv := payto.NewServer(cfg.HTTPAddr, a.resolver, a.catalog, a.metrics.Handler(),
				payto.WithServerLogger(a.logger),
				payto.WithHealthCheck(a.db.PingContext),
			)

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start() }()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					die(err)
				}
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					a.logger.Error("shutdown failed", map[string]any{"error": err.Error()})
				}
			}
		},
	}
	cmd.Flags().StringVar(&cfg.HTTPAddr, "addr", cfg.HTTPAddr, "listen address")
	return cmd
}

func printContacts(contacts []payto.Contact) {
	if len(contacts) == 0 {
		fmt.Println("no contacts")
		return
	}
	fmt.Printf("%-36s | %-20s | %s\n", "ID", "NAME", "PAY TO")
	fmt.Println(strings.Repeat("-", 80))
	for _, c := range contacts {
		fmt.Printf("%-36s | %-20s | %s\n", c.ID, trunc(c.Name, 20), describe(c.Target()))
	}
}

func describe(t payto.Target) string {
	label := t.Label()
	switch {
	case t.Address != "" && label != t.Address:
		return fmt.Sprintf("%s (%s)", label, t.Address)
	case label != "":
		return label
	}
	return string(t.Kind)
}

func others(chains []payto.ChainID, except payto.ChainID) []payto.ChainID {
	var out []payto.ChainID
	for _, c := range chains {
		if c != except {
			out = append(out, c)
		}
	}
	return out
}

func joinChains(chains []payto.ChainID) string {
	s := make([]string, len(chains))
	for i, c := range chains {
		s[i] = string(c)
	}
	return strings.Join(s, ", ")
}

func joinFamilies(fams []payto.Family) string {
	if len(fams) == 0 {
		return "(none)"
	}
	s := make([]string, len(fams))
	for i, f := range fams {
		s[i] = string(f)
	}
	return strings.Join(s, ", ")
}

// cleanup releases the running command's app, if any.
func cleanup() {
	if current != nil {
		current.close()
	}
}

func die(err error) {
	cleanup()
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}

func readpwd(prompt string) []byte {
	fmt.Print(prompt)
	pwd, _ := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	return pwd
}

func trunc(s string, n int) string {
	if len(s) > n {
		return s[:n-3] + "..."
	}
	return s
}

func fmtAgo(secs int64) string {
	if secs < 60 {
		return fmt.Sprintf("%ds ago", secs)
	}
	if secs < 3600 {
		return fmt.Sprintf("%dm ago", secs/60)
	}
	if secs < 86400 {
		return fmt.Sprintf("%dh ago", secs/3600)
	}
	return fmt.Sprintf("%dd ago", secs/86400)
}
