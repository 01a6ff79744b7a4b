package email

// Email templates in HTML format. Body formatting stays plain; the web app
// owns branded rendering.

// BaseTemplate is the base layout for all emails
const BaseTemplate = `
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <style>
        body { margin: 0; padding: 0; font-family: -apple-system, 'Segoe UI', Roboto, Arial, sans-serif; background-color: #f6f7f9; color: #1f2933; }
        .container { max-width: 600px; margin: 0 auto; padding: 32px 20px; }
        .card { background: #ffffff; border-radius: 8px; padding: 28px; border: 1px solid #e4e7eb; }
        h2 { font-size: 22px; margin: 0 0 14px; }
        p { color: #52606d; font-size: 15px; line-height: 1.6; margin: 0 0 14px; }
        .amount { font-size: 26px; font-weight: 700; color: #1f2933; }
        .footer { text-align: center; color: #9aa5b1; font-size: 12px; margin-top: 20px; }
    </style>
</head>
<body>
    <div class="container">
        <div class="card">{{.Content}}</div>
        <div class="footer">Nestora · automated settlement notice, do not reply</div>
    </div>
</body>
</html>
`

// FundsAvailableTemplate notifies a payee that a pending credit matured.
const FundsAvailableTemplate = `
<h2>Funds available</h2>
<p>Hi {{.Name}},</p>
<p>A payment has cleared its settlement hold and is now spendable.</p>
<p class="amount">{{.Amount}}</p>
<p>Your available balance is {{.Available}}.</p>
`

// HoldReleasedTemplate notifies a payee that a job guarantee hold paid out.
const HoldReleasedTemplate = `
<h2>Payout released</h2>
<p>Hi {{.Name}},</p>
<p>The guarantee hold for job {{.SourceID}} has been released and transferred to your payout destination.</p>
<p class="amount">{{.Amount}}</p>
`

// DisputeOpenedTemplate notifies a payee that a dispute was filed against a hold.
const DisputeOpenedTemplate = `
<h2>Dispute opened</h2>
<p>Hi {{.Name}},</p>
<p>A dispute ({{.CaseNumber}}) was filed against your held payment of {{.Amount}}.</p>
<p>Please respond with evidence before {{.ResponseDeadline}}.</p>
`

// DisputeResolvedTemplate notifies both parties of a resolution.
const DisputeResolvedTemplate = `
<h2>Dispute resolved</h2>
<p>Hi {{.Name}},</p>
<p>Case {{.CaseNumber}} has been resolved: {{.Outcome}}.</p>
<p>Refunded amount: {{.RefundAmount}}.</p>
`

// UsageWarningTemplate warns a tenant approaching a plan limit.
const UsageWarningTemplate = `
<h2>Approaching your plan limit</h2>
<p>Hi {{.Name}},</p>
<p>You have used {{.Current}} of {{.Limit}} {{.Feature}} on the {{.PlanName}} plan ({{.Percent}}%).</p>
<p>Upgrade to keep things running without interruption.</p>
`

// UsageLimitReachedTemplate tells a tenant a plan limit is exhausted.
const UsageLimitReachedTemplate = `
<h2>Plan limit reached</h2>
<p>Hi {{.Name}},</p>
<p>You have reached the {{.Feature}} limit ({{.Limit}}) on the {{.PlanName}} plan.</p>
<p>Further use of this feature is locked until you upgrade or the next billing period begins.</p>
`
