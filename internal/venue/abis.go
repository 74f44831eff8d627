package venue

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Contract ABIs, reduced to the methods and events the adapter uses.
var (
	positionManagerABI abi.ABI
	poolABI            abi.ABI
	erc20ABI           abi.ABI
)

func init() {
	var err error

	positionManagerABI, err = abi.JSON(strings.NewReader(`[
		{
			"name": "mint",
			"type": "function",
			"stateMutability": "payable",
			"inputs": [{"name": "params", "type": "tuple", "components": [
				{"name": "token0", "type": "address"},
				{"name": "token1", "type": "address"},
				{"name": "fee", "type": "uint24"},
				{"name": "tickLower", "type": "int24"},
				{"name": "tickUpper", "type": "int24"},
				{"name": "amount0Desired", "type": "uint256"},
				{"name": "amount1Desired", "type": "uint256"},
				{"name": "amount0Min", "type": "uint256"},
				{"name": "amount1Min", "type": "uint256"},
				{"name": "recipient", "type": "address"},
				{"name": "deadline", "type": "uint256"}
			]}],
			"outputs": [
				{"name": "tokenId", "type": "uint256"},
				{"name": "liquidity", "type": "uint128"},
				{"name": "amount0", "type": "uint256"},
				{"name": "amount1", "type": "uint256"}
			]
		},
		{
			"name": "increaseLiquidity",
			"type": "function",
			"stateMutability": "payable",
			"inputs": [{"name": "params", "type": "tuple", "components": [
				{"name": "tokenId", "type": "uint256"},
				{"name": "amount0Desired", "type": "uint256"},
				{"name": "amount1Desired", "type": "uint256"},
				{"name": "amount0Min", "type": "uint256"},
				{"name": "amount1Min", "type": "uint256"},
				{"name": "deadline", "type": "uint256"}
			]}],
			"outputs": [
				{"name": "liquidity", "type": "uint128"},
				{"name": "amount0", "type": "uint256"},
				{"name": "amount1", "type": "uint256"}
			]
		},
		{
			"name": "decreaseLiquidity",
			"type": "function",
			"stateMutability": "payable",
			"inputs": [{"name": "params", "type": "tuple", "components": [
				{"name": "tokenId", "type": "uint256"},
				{"name": "liquidity", "type": "uint128"},
				{"name": "amount0Min", "type": "uint256"},
				{"name": "amount1Min", "type": "uint256"},
				{"name": "deadline", "type": "uint256"}
			]}],
			"outputs": [
				{"name": "amount0", "type": "uint256"},
				{"name": "amount1", "type": "uint256"}
			]
		},
		{
			"name": "collect",
			"type": "function",
			"stateMutability": "payable",
			"inputs": [{"name": "params", "type": "tuple", "components": [
				{"name": "tokenId", "type": "uint256"},
				{"name": "recipient", "type": "address"},
				{"name": "amount0Max", "type": "uint128"},
				{"name": "amount1Max", "type": "uint128"}
			]}],
			"outputs": [
				{"name": "amount0", "type": "uint256"},
				{"name": "amount1", "type": "uint256"}
			]
		},
		{
			"name": "burn",
			"type": "function",
			"stateMutability": "payable",
			"inputs": [{"name": "tokenId", "type": "uint256"}],
			"outputs": []
		},
		{
			"name": "positions",
			"type": "function",
			"stateMutability": "view",
			"inputs": [{"name": "tokenId", "type": "uint256"}],
			"outputs": [
				{"name": "nonce", "type": "uint96"},
				{"name": "operator", "type": "address"},
				{"name": "token0", "type": "address"},
				{"name": "token1", "type": "address"},
				{"name": "fee", "type": "uint24"},
				{"name": "tickLower", "type": "int24"},
				{"name": "tickUpper", "type": "int24"},
				{"name": "liquidity", "type": "uint128"},
				{"name": "feeGrowthInside0LastX128", "type": "uint256"},
				{"name": "feeGrowthInside1LastX128", "type": "uint256"},
				{"name": "tokensOwed0", "type": "uint128"},
				{"name": "tokensOwed1", "type": "uint128"}
			]
		},
		{
			"name": "IncreaseLiquidity",
			"type": "event",
			"anonymous": false,
			"inputs": [
				{"name": "tokenId", "type": "uint256", "indexed": true},
				{"name": "liquidity", "type": "uint128", "indexed": false},
				{"name": "amount0", "type": "uint256", "indexed": false},
				{"name": "amount1", "type": "uint256", "indexed": false}
			]
		},
		{
			"name": "DecreaseLiquidity",
			"type": "event",
			"anonymous": false,
			"inputs": [
				{"name": "tokenId", "type": "uint256", "indexed": true},
				{"name": "liquidity", "type": "uint128", "indexed": false},
				{"name": "amount0", "type": "uint256", "indexed": false},
				{"name": "amount1", "type": "uint256", "indexed": false}
			]
		},
		{
			"name": "Collect",
			"type": "event",
			"anonymous": false,
			"inputs": [
				{"name": "tokenId", "type": "uint256", "indexed": true},
				{"name": "recipient", "type": "address", "indexed": false},
				{"name": "amount0", "type": "uint256", "indexed": false},
				{"name": "amount1", "type": "uint256", "indexed": false}
			]
		}
	]`))
	if err != nil {
		panic("position manager abi parse: " + err.Error())
	}

	poolABI, err = abi.JSON(strings.NewReader(`[
		{
			"name": "slot0",
			"type": "function",
			"stateMutability": "view",
			"inputs": [],
			"outputs": [
				{"name": "sqrtPriceX96", "type": "uint160"},
				{"name": "tick", "type": "int24"},
				{"name": "observationIndex", "type": "uint16"},
				{"name": "observationCardinality", "type": "uint16"},
				{"name": "observationCardinalityNext", "type": "uint16"},
				{"name": "feeProtocol", "type": "uint8"},
				{"name": "unlocked", "type": "bool"}
			]
		},
		{
			"name": "tickSpacing",
			"type": "function",
			"stateMutability": "view",
			"inputs": [],
			"outputs": [{"name": "", "type": "int24"}]
		}
	]`))
	if err != nil {
		panic("pool abi parse: " + err.Error())
	}

	erc20ABI, err = abi.JSON(strings.NewReader(`[
		{
			"name": "balanceOf",
			"type": "function",
			"stateMutability": "view",
			"inputs": [{"name": "account", "type": "address"}],
			"outputs": [{"name": "", "type": "uint256"}]
		},
		{
			"name": "transfer",
			"type": "function",
			"inputs": [
				{"name": "to", "type": "address"},
				{"name": "amount", "type": "uint256"}
			],
			"outputs": [{"name": "", "type": "bool"}]
		},
		{
			"name": "transferFrom",
			"type": "function",
			"inputs": [
				{"name": "from", "type": "address"},
				{"name": "to", "type": "address"},
				{"name": "amount", "type": "uint256"}
			],
			"outputs": [{"name": "", "type": "bool"}]
		},
		{
			"name": "approve",
			"type": "function",
			"inputs": [
				{"name": "spender", "type": "address"},
				{"name": "amount", "type": "uint256"}
			],
			"outputs": [{"name": "", "type": "bool"}]
		},
		{
			"name": "allowance",
			"type": "function",
			"stateMutability": "view",
			"inputs": [
				{"name": "owner", "type": "address"},
				{"name": "spender", "type": "address"}
			],
			"outputs": [{"name": "", "type": "uint256"}]
		}
	]`))
	if err != nil {
		panic("erc20 abi parse: " + err.Error())
	}
}
