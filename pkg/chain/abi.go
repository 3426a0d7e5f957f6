package chain

// dexABI covers the stablecoin DEX quote and swap entry points
const dexABI = `[
{"name":"quoteSwapExactAmountIn","type":"function","stateMutability":"view",
 "inputs":[{"name":"tokenIn","type":"address"},{"name":"tokenOut","type":"address"},{"name":"amountIn","type":"uint128"}],
 "outputs":[{"name":"amountOut","type":"uint128"}]},
{"name":"quoteSwapExactAmountOut","type":"function","stateMutability":"view",
 "inputs":[{"name":"tokenIn","type":"address"},{"name":"tokenOut","type":"address"},{"name":"amountOut","type":"uint128"}],
 "outputs":[{"name":"amountIn","type":"uint128"}]},
{"name":"swapExactAmountIn","type":"function","stateMutability":"nonpayable",
 "inputs":[{"name":"tokenIn","type":"address"},{"name":"tokenOut","type":"address"},{"name":"amountIn","type":"uint128"},{"name":"minAmountOut","type":"uint128"}],
 "outputs":[{"name":"amountOut","type":"uint128"}]},
{"name":"swapExactAmountOut","type":"function","stateMutability":"nonpayable",
 "inputs":[{"name":"tokenIn","type":"address"},{"name":"tokenOut","type":"address"},{"name":"amountOut","type":"uint128"},{"name":"maxAmountIn","type":"uint128"}],
 "outputs":[{"name":"amountIn","type":"uint128"}]}
]`

// erc20ABI is the token surface the engine and faucet use
const erc20ABI = `[
{"name":"name","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
{"name":"symbol","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
{"name":"decimals","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]},
{"name":"balanceOf","type":"function","stateMutability":"view",
 "inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
{"name":"allowance","type":"function","stateMutability":"view",
 "inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
{"name":"approve","type":"function","stateMutability":"nonpayable",
 "inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
{"name":"mint","type":"function","stateMutability":"nonpayable",
 "inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[]}
]`
