package engine

// int16Scale maps the full signed 16-bit range onto [-1, 1).
// 32768 rather than 32767 so -32768 converts exactly to -1.0.
const int16Scale = 32768.0
