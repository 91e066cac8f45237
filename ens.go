package payto

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// ENSRegistry is the ENS registry on Ethereum mainnet.
const ENSRegistry = "0x00000000000C2E074eC69A0dFb2997BA6C7d2e1e"

const ensABI = `[
	{"constant":true,"inputs":[{"name":"node","type":"bytes32"}],"name":"resolver","outputs":[{"name":"","type":"address"}],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[{"name":"node","type":"bytes32"}],"name":"addr","outputs":[{"name":"","type":"address"}],"stateMutability":"view","type":"function"}
]`

// ContractCaller is the read-only slice of an Ethereum client ENS needs.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

type ENSResolver struct {
	caller   ContractCaller
	registry common.Address
	abi      abi.ABI
	client   *ethclient.Client
}

func NewENSResolver(caller ContractCaller) (*ENSResolver, error) {
	parsed, err := abi.JSON(strings.NewReader(ensABI))
	if err != nil {
		return nil, fmt.Errorf("parse ens abi: %w", err)
	}
	return &ENSResolver{
		caller:   caller,
		registry: common.HexToAddress(ENSRegistry),
		abi:      parsed,
	}, nil
}

// DialENS connects to an Ethereum JSON-RPC endpoint.
func DialENS(ctx context.Context, rpcURL string) (*ENSResolver, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial ethereum rpc: %w", err)
	}
	r, err := NewENSResolver(client)
	if err != nil {
		client.Close()
		return nil, err
	}
	r.client = client
	return r, nil
}

func (r *ENSResolver) Close() {
	if r.client != nil {
		r.client.Close()
	}
}

// ResolveName walks registry -> resolver -> addr for the name.
func (r *ENSResolver) ResolveName(ctx context.Context, name string) (string, error) {
	node := Namehash(name)

	resolver, err := r.callAddress(ctx, r.registry, "resolver", node)
	if err != nil {
		return "", fmt.Errorf("ens resolver for %s: %w", name, err)
	}
	if resolver == (common.Address{}) {
		return "", ErrNameNotFound
	}

	addr, err := r.callAddress(ctx, resolver, "addr", node)
	if err != nil {
		return "", fmt.Errorf("ens addr for %s: %w", name, err)
	}
	if addr == (common.Address{}) {
		return "", ErrNameNotFound
	}
	return strings.ToLower(addr.Hex()), nil
}

func (r *ENSResolver) callAddress(ctx context.Context, to common.Address, method string, node common.Hash) (common.Address, error) {
	data, err := r.abi.Pack(method, [32]byte(node))
	if err != nil {
		return common.Address{}, err
	}

	out, err := r.caller.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return common.Address{}, err
	}
	if len(out) == 0 {
		// no code at the address
		return common.Address{}, nil
	}

	values, err := r.abi.Unpack(method, out)
	if err != nil {
		return common.Address{}, err
	}
	if len(values) != 1 {
		return common.Address{}, fmt.Errorf("unexpected %s output", method)
	}
	addr, ok := values[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("unexpected %s output type %T", method, values[0])
	}
	return addr, nil
}

// Namehash implements the EIP-137 name hash.
func Namehash(name string) common.Hash {
	var node common.Hash
	if name == "" {
		return node
	}
	labels := strings.Split(strings.ToLower(name), ".")
	for i := len(labels) - 1; i >= 0; i-- {
		label := crypto.Keccak256Hash([]byte(labels[i]))
		node = crypto.Keccak256Hash(node.Bytes(), label.Bytes())
	}
	return node
}
