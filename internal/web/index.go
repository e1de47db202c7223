package web

const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>folio</title>
  <style>
    :root { --ink:#1b1b1b; --ink-mid:#555; --up:#0a7f43; --down:#b3261e; }
    body { font-family:'Space Mono',monospace; color:var(--ink); background:#f4f1ea; margin:0; padding:2rem; }
    h1 { letter-spacing:.12em; text-transform:uppercase; font-size:1.1rem; }
    .total { border:3px solid var(--ink); background:#fff; padding:1.2rem; box-shadow:6px 6px 0 rgba(0,0,0,.12); max-width:28rem; }
    .total .label { font-size:.62rem; text-transform:uppercase; letter-spacing:.2em; color:var(--ink-mid); }
    .total .value { margin-top:.6rem; font-size:1.8rem; font-weight:700; }
    .total .change { margin-top:.3rem; font-size:.8rem; }
    .up { color:var(--up); } .down { color:var(--down); }
    table { border-collapse:collapse; margin-top:1.5rem; background:#fff; border:3px solid var(--ink); box-shadow:6px 6px 0 rgba(0,0,0,.12); }
    th, td { padding:.5rem .9rem; border-bottom:2px solid #ddd; font-size:.75rem; text-align:right; }
    th { text-transform:uppercase; letter-spacing:.1em; font-size:.6rem; }
    th:first-child, td:first-child { text-align:left; }
    .pill { font-size:.55rem; letter-spacing:.12em; text-transform:uppercase; padding:.2rem .5rem; border:2px solid var(--ink); margin-left:.4rem; }
    #status { font-size:.65rem; text-transform:uppercase; letter-spacing:.15em; color:var(--ink-mid); margin-bottom:1rem; }
  </style>
</head>
<body>
  <h1>folio &mdash; consolidated portfolio</h1>
  <div id="status">connecting&hellip;</div>
  <div class="total">
    <div class="label">Total value</div>
    <div class="value" id="total">--</div>
    <div class="change" id="change"></div>
  </div>
  <table>
    <thead><tr><th>Asset</th><th>Amount</th><th>Price</th><th>Value</th><th>24h</th></tr></thead>
    <tbody id="assets"></tbody>
  </table>
  <table>
    <thead><tr><th>Exchange</th><th>Value</th><th>24h</th></tr></thead>
    <tbody id="exchanges"></tbody>
  </table>
  <script>
    const fmt = (v) => v == null ? '--' : Number(v).toLocaleString('en-US', {maximumFractionDigits: 2});
    const pct = (v) => v == null ? '' : (Number(v) >= 0 ? '+' : '') + Number(v).toFixed(2) + '%';
    const cls = (v) => Number(v) >= 0 ? 'up' : 'down';

    const es = new EventSource('/portfolio/stream');
    es.onopen = () => { document.getElementById('status').textContent = 'live'; };
    es.onerror = () => { document.getElementById('status').textContent = 'disconnected (stale data shown)'; };
    es.addEventListener('portfolio', (e) => {
      const v = JSON.parse(e.data);
      document.getElementById('total').textContent = '$' + fmt(v.totalValueUsd);
      const ch = document.getElementById('change');
      if (v.change24hPercent != null) {
        ch.textContent = pct(v.change24hPercent) + ' ($' + fmt(v.change24hUsd) + ')';
        ch.className = 'change ' + cls(v.change24hPercent);
      } else {
        ch.textContent = 'no 24h data';
        ch.className = 'change';
      }
      document.getElementById('status').textContent = v.isSyncing ? 'live (resync in progress)' : 'live';

      const assets = document.getElementById('assets');
      assets.innerHTML = '';
      for (const a of v.assets || []) {
        const tr = document.createElement('tr');
        const avg = a.isAveragePrice ? '<span class="pill">avg</span>' : '';
        tr.innerHTML = '<td>' + a.asset + avg + '</td><td>' + fmt(a.total) + '</td><td>' +
          (a.hasPrice ? '$' + fmt(a.priceUsd) : '--') + '</td><td>' +
          (a.hasPrice ? '$' + fmt(a.valueUsd) : '--') + '</td><td class="' + cls(a.change24h) + '">' +
          pct(a.change24h) + '</td>';
        assets.appendChild(tr);
      }

      const exchanges = document.getElementById('exchanges');
      exchanges.innerHTML = '';
      for (const x of v.exchanges || []) {
        const tr = document.createElement('tr');
        tr.innerHTML = '<td>' + (x.label || x.exchange) + '</td><td>$' + fmt(x.totalValueUsd) +
          '</td><td class="' + cls(x.change24hPercent) + '">' + pct(x.change24hPercent) + '</td>';
        exchanges.appendChild(tr);
      }
    });
  </script>
</body>
</html>`
